package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/mixpolicy/pkg/cli"
	"mercator-hq/mixpolicy/pkg/policy/manager"
	"mercator-hq/mixpolicy/pkg/policy/mix"
)

var lintFlags struct {
	strict      bool
	maxMixes    int
	maxCriteria int
}

var lintCmd = &cobra.Command{
	Use:   "lint FILE...",
	Short: "Validate mix files",
	Long: `Validate YAML mix files.

Each file is parsed and registered into an empty registry, so every check the
server applies at startup runs here too:
  - YAML syntax and known field, usage, source and device names
  - registration id presence and uniqueness
  - mix count and criteria-per-mix limits
  - route flags and criterion rules

It also warns about mixes that can never be selected and mixes that accept
every stream of their class.

Examples:
  # Lint one file
  mixpolicy lint mixes.yaml

  # Treat warnings as errors, JSON output for CI
  mixpolicy lint --strict --output json mixes/*.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: lintMixFiles,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	def := manager.DefaultRegistryConfig()
	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
	lintCmd.Flags().IntVar(&lintFlags.maxMixes, "max-mixes", def.MaxMixes, "registry capacity to check against")
	lintCmd.Flags().IntVar(&lintFlags.maxCriteria, "max-criteria", def.MaxCriteriaPerMix, "criteria per mix limit to check against")
}

const (
	severityError   = "error"
	severityWarning = "warning"
)

// lintFinding is a single problem found in a mix file.
type lintFinding struct {
	File     string `json:"file" yaml:"file"`
	Severity string `json:"severity" yaml:"severity"`
	Mix      string `json:"mix,omitempty" yaml:"mix,omitempty"`
	Message  string `json:"message" yaml:"message"`
}

// lintReport is the result of linting a set of files.
type lintReport struct {
	Files    int           `json:"files" yaml:"files"`
	Errors   int           `json:"errors" yaml:"errors"`
	Warnings int           `json:"warnings" yaml:"warnings"`
	Findings []lintFinding `json:"findings" yaml:"findings"`
}

func (r *lintReport) Header() []string {
	return []string{"FILE", "SEVERITY", "MIX", "MESSAGE"}
}

func (r *lintReport) Rows() [][]string {
	rows := make([][]string, len(r.Findings))
	for i, f := range r.Findings {
		rows[i] = []string{f.File, f.Severity, f.Mix, f.Message}
	}
	return rows
}

func (r *lintReport) add(f lintFinding) {
	switch f.Severity {
	case severityError:
		r.Errors++
	case severityWarning:
		r.Warnings++
	}
	r.Findings = append(r.Findings, f)
}

func lintMixFiles(cmd *cobra.Command, args []string) error {
	f, format, err := formatter()
	if err != nil {
		return err
	}

	limits := manager.RegistryConfig{MaxMixes: lintFlags.maxMixes, MaxCriteriaPerMix: lintFlags.maxCriteria}
	report := &lintReport{Files: len(args), Findings: []lintFinding{}}
	for _, path := range args {
		for _, finding := range lintFile(path, limits) {
			report.add(finding)
		}
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatText && len(report.Findings) == 0 {
		fmt.Fprintf(out, "%d file(s) ok\n", report.Files)
	} else if err := f.FormatTo(out, report); err != nil {
		return err
	}

	if report.Errors > 0 || (lintFlags.strict && report.Warnings > 0) {
		return cli.NewExitError(cli.ExitFindings,
			fmt.Errorf("lint found %d error(s) and %d warning(s)", report.Errors, report.Warnings))
	}
	return nil
}

// lintFile returns the findings for one mix file.
func lintFile(path string, limits manager.RegistryConfig) []lintFinding {
	reg, err := loadRegistry(path, limits)
	if err != nil {
		return []lintFinding{{File: path, Severity: severityError, Message: err.Error()}}
	}

	var findings []lintFinding
	mixes := reg.List()
	seen := make(map[string]string, len(mixes))
	for _, m := range mixes {
		if !hasIncludeCriteria(m) {
			findings = append(findings, lintFinding{
				File:     path,
				Severity: severityWarning,
				Mix:      m.RegistrationID,
				Message:  fmt.Sprintf("accepts every %s stream not excluded", classOf(m)),
			})
		}

		key := criteriaKey(m)
		if first, ok := seen[key]; ok {
			findings = append(findings, lintFinding{
				File:     path,
				Severity: severityWarning,
				Mix:      m.RegistrationID,
				Message:  fmt.Sprintf("never selected: %q has the same criteria and was registered first", first),
			})
			continue
		}
		seen[key] = m.RegistrationID
	}
	return findings
}

func hasIncludeCriteria(m *mix.Mix) bool {
	return slices.ContainsFunc(m.Criteria, func(c mix.Criterion) bool {
		return !c.IsExcludeCriterion()
	})
}

func classOf(m *mix.Mix) mix.StreamClass {
	if m.Type == mix.TypeRecorders {
		return mix.StreamCapture
	}
	return mix.StreamPlayback
}

// criteriaKey identifies the set of streams a mix accepts: its type plus
// its criteria regardless of order.
func criteriaKey(m *mix.Mix) string {
	parts := make([]string, len(m.Criteria))
	for i, c := range m.Criteria {
		parts[i] = c.String()
	}
	slices.Sort(parts)
	return m.Type.String() + "|" + strings.Join(parts, ",")
}
