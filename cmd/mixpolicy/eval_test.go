package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/mixpolicy/pkg/cli"
	"mercator-hq/mixpolicy/pkg/server"
)

func resetEvalFlags(t *testing.T) {
	t.Helper()
	evalFlags.mixes = "testdata/mixes.yaml"
	evalFlags.streams = ""
	evalFlags.progress = false
	evalFlags.stream = server.StreamRequest{Class: "playback"}
	setOutput(t, "json")
}

func runEval(t *testing.T) (evalReport, string, error) {
	t.Helper()
	cmd, out, errOut := newTestCmd(t)
	err := evalStreams(cmd, nil)

	var report evalReport
	if out.Len() > 0 {
		if jerr := json.Unmarshal(out.Bytes(), &report); jerr != nil {
			t.Fatalf("invalid JSON output: %v\n%s", jerr, out.String())
		}
	}
	return report, errOut.String(), err
}

func TestEvalStreams_Single(t *testing.T) {
	tests := []struct {
		name   string
		stream server.StreamRequest
		want   string
	}{
		{"media", server.StreamRequest{Class: "playback", Usage: "media"}, "remote_submix:media"},
		{"game code", server.StreamRequest{Class: "playback", Usage: "14"}, "remote_submix:media"},
		{"alarm", server.StreamRequest{Class: "playback", Usage: "alarm"}, ""},
		{"mic", server.StreamRequest{Class: "capture", Source: "mic", UID: 10050}, "recorder:mic"},
		{"excluded uid", server.StreamRequest{Class: "capture", Source: "mic", UID: 10001}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetEvalFlags(t)
			evalFlags.stream = tt.stream

			report, _, err := runEval(t)
			if err != nil {
				t.Fatalf("evalStreams() error = %v", err)
			}
			if len(report.Results) != 1 {
				t.Fatalf("results = %+v", report.Results)
			}
			d := report.Results[0].Decision
			if d.RegistrationID != tt.want || d.Matched != (tt.want != "") {
				t.Errorf("decision = %+v, want %q", d, tt.want)
			}
		})
	}
}

func TestEvalStreams_UserID(t *testing.T) {
	resetEvalFlags(t)
	dir := t.TempDir()
	evalFlags.mixes = filepath.Join(dir, "mixes.yaml")
	evalFlags.streams = filepath.Join(dir, "streams.yaml")
	writeFile(t, evalFlags.mixes, `mixes:
  - registration_id: work
    type: players
    route_flags: [loop_back]
    criteria:
      - {field: user_id, value: 10}
`)
	writeFile(t, evalFlags.streams, `streams:
  - name: derived
    class: playback
    usage: media
    uid: 1010050
    expect: work
  - name: personal
    class: playback
    usage: media
    uid: 10050
    expect: ""
  - name: explicit
    class: playback
    usage: media
    uid: 10050
    user_id: 10
    expect: work
`)

	report, _, err := runEval(t)
	if err != nil {
		t.Fatalf("evalStreams() error = %v (report %+v)", err, report)
	}
	if len(report.Results) != 3 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}

	evalFlags.streams = ""
	id := int32(10)
	evalFlags.stream = server.StreamRequest{Class: "playback", Usage: "media", UID: 10050, UserID: &id}
	report, _, err = runEval(t)
	if err != nil {
		t.Fatalf("evalStreams() error = %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Decision.RegistrationID != "work" {
		t.Errorf("single stream report = %+v", report)
	}
}

func TestEvalStreams_Batch(t *testing.T) {
	resetEvalFlags(t)
	evalFlags.streams = "testdata/streams.yaml"
	evalFlags.progress = true

	report, progress, err := runEval(t)
	if err != nil {
		t.Fatalf("evalStreams() error = %v", err)
	}
	if len(report.Results) != 4 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	if !strings.Contains(progress, "(4/4)") {
		t.Errorf("progress output = %q", progress)
	}
}

func TestEvalStreams_Mismatch(t *testing.T) {
	resetEvalFlags(t)
	evalFlags.streams = "testdata/streams-mismatch.yaml"
	setOutput(t, "text")

	cmd, out, _ := newTestCmd(t)
	err := evalStreams(cmd, nil)
	if cli.ExitCode(err) != cli.ExitFindings {
		t.Fatalf("evalStreams() error = %v, want findings exit", err)
	}
	text := out.String()
	if !strings.Contains(text, "FAIL") || !strings.Contains(text, "unchecked") {
		t.Errorf("output:\n%s", text)
	}
}

func TestEvalStreams_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func()
	}{
		{"missing mix file", func() { evalFlags.mixes = "testdata/nonexistent.yaml" }},
		{"invalid mix file", func() { evalFlags.mixes = "testdata/invalid.yaml" }},
		{"missing stream file", func() { evalFlags.streams = "testdata/nonexistent.yaml" }},
		{"empty stream file", func() { evalFlags.streams = "testdata/mixes.yaml" }},
		{"bad usage", func() { evalFlags.stream.Usage = "karaoke" }},
		{"bad class", func() { evalFlags.stream.Class = "broadcast" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetEvalFlags(t)
			tt.setup()
			if _, _, err := runEval(t); err == nil {
				t.Error("evalStreams() error = nil")
			}
		})
	}
}
