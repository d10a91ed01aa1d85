package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/mixpolicy/pkg/cli"
	"mercator-hq/mixpolicy/pkg/policy/engine"
	"mercator-hq/mixpolicy/pkg/policy/manager"
	"mercator-hq/mixpolicy/pkg/server"
)

var evalFlags struct {
	mixes    string
	streams  string
	progress bool
	userID   int32
	stream   server.StreamRequest
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate streams against a mix file",
	Long: `Evaluate candidate streams against the mixes of a YAML mix file.

A single stream is described with flags. A batch is a YAML file of streams,
each with an optional expected registration id ("" expects no match):

  streams:
    - name: game audio
      class: playback
      usage: game
      uid: 10123
      user_id: 10
      expect: "remote_submix:media"

The command exits with status 3 when any expectation fails.

Examples:
  mixpolicy eval --mixes mixes.yaml --class playback --usage media
  mixpolicy eval --mixes mixes.yaml --streams streams.yaml --output json`,
	Args: cobra.NoArgs,
	RunE: evalStreams,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	f := evalCmd.Flags()
	f.StringVarP(&evalFlags.mixes, "mixes", "m", "", "mix file (required)")
	f.StringVarP(&evalFlags.streams, "streams", "s", "", "YAML file of streams to evaluate")
	f.BoolVar(&evalFlags.progress, "progress", false, "report batch progress on stderr")
	f.StringVar(&evalFlags.stream.Class, "class", "playback", "stream class: playback, capture")
	f.StringVar(&evalFlags.stream.Usage, "usage", "", "playback usage name or code")
	f.StringVar(&evalFlags.stream.Source, "source", "", "capture source name or code")
	f.Uint32Var(&evalFlags.stream.UID, "uid", 0, "stream uid")
	f.Int32Var(&evalFlags.userID, "user-id", 0, "stream owner user id (default: derived from --uid)")
	f.Int32Var(&evalFlags.stream.SessionID, "session", 0, "audio session id")
	_ = evalCmd.MarkFlagRequired("mixes")
}

// streamCase is one entry of a stream batch file.
type streamCase struct {
	Name      string  `yaml:"name"`
	Class     string  `yaml:"class"`
	Usage     string  `yaml:"usage"`
	Source    string  `yaml:"source"`
	UID       uint32  `yaml:"uid"`
	UserID    *int32  `yaml:"user_id"`
	SessionID int32   `yaml:"session_id"`
	Expect    *string `yaml:"expect"`
}

func (c streamCase) request() server.StreamRequest {
	return server.StreamRequest{
		Class:     c.Class,
		Usage:     c.Usage,
		Source:    c.Source,
		UID:       c.UID,
		UserID:    c.UserID,
		SessionID: c.SessionID,
	}
}

// evalResult is the outcome of one stream.
type evalResult struct {
	Stream   string          `json:"stream" yaml:"stream"`
	Decision engine.Decision `json:"decision" yaml:"decision"`
	Expect   *string         `json:"expect,omitempty" yaml:"expect,omitempty"`
	Pass     bool            `json:"pass" yaml:"pass"`
}

// evalReport lists the results of an evaluation run.
type evalReport struct {
	Results []evalResult `json:"results" yaml:"results"`
	Failed  int          `json:"failed" yaml:"failed"`
}

func (r *evalReport) Header() []string {
	return []string{"STREAM", "MATCHED", "MIX", "AMBIGUOUS", "EXPECT", "RESULT"}
}

func (r *evalReport) Rows() [][]string {
	rows := make([][]string, len(r.Results))
	for i, res := range r.Results {
		expect, result := "-", "pass"
		if res.Expect != nil {
			expect = strconv.Quote(*res.Expect)
		}
		if !res.Pass {
			result = "FAIL"
		}
		rows[i] = []string{
			res.Stream,
			strconv.FormatBool(res.Decision.Matched),
			res.Decision.RegistrationID,
			strconv.FormatBool(res.Decision.Ambiguous),
			expect,
			result,
		}
	}
	return rows
}

func evalStreams(cmd *cobra.Command, args []string) error {
	f, _, err := formatter()
	if err != nil {
		return err
	}

	reg, err := loadRegistry(evalFlags.mixes, manager.DefaultRegistryConfig())
	if err != nil {
		return cli.NewCommandError("eval", err)
	}

	cases := []streamCase{{Name: "stream"}}
	if evalFlags.streams != "" {
		if cases, err = loadStreamCases(evalFlags.streams); err != nil {
			return cli.NewCommandError("eval", err)
		}
	}

	var progress cli.ProgressReporter
	if evalFlags.progress {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "streams")
		progress.Start(int64(len(cases)))
	}

	if cmd.Flags().Changed("user-id") {
		id := evalFlags.userID
		evalFlags.stream.UserID = &id
	}

	evaluator := engine.NewEvaluator(nil, nil)
	mixes := reg.List()
	report := &evalReport{Results: make([]evalResult, 0, len(cases))}
	for i, c := range cases {
		req := evalFlags.stream
		if evalFlags.streams != "" {
			req = c.request()
		}
		s, err := req.Stream()
		if err != nil {
			err = fmt.Errorf("stream %d (%s): %w", i, c.Name, err)
			if progress != nil {
				progress.Error(err)
			}
			return cli.NewCommandError("eval", err)
		}

		d := evaluator.Evaluate(mixes, s)
		res := evalResult{Stream: c.Name, Decision: d, Expect: c.Expect, Pass: true}
		if c.Expect != nil {
			res.Pass = d.RegistrationID == *c.Expect
		}
		if !res.Pass {
			report.Failed++
		}
		report.Results = append(report.Results, res)

		if progress != nil {
			progress.Update(int64(i + 1))
		}
	}
	if progress != nil {
		progress.Finish()
	}

	if err := f.FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if report.Failed > 0 {
		return cli.NewExitError(cli.ExitFindings,
			fmt.Errorf("%d of %d stream(s) did not route as expected", report.Failed, len(report.Results)))
	}
	return nil
}

func loadStreamCases(path string) ([]streamCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Streams []streamCase `yaml:"streams"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(doc.Streams) == 0 {
		return nil, fmt.Errorf("%s: no streams", path)
	}
	for i := range doc.Streams {
		if doc.Streams[i].Name == "" {
			doc.Streams[i].Name = fmt.Sprintf("#%d", i)
		}
		if doc.Streams[i].Class == "" {
			doc.Streams[i].Class = "playback"
		}
	}
	return doc.Streams, nil
}
