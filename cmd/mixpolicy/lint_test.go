package main

import (
	"encoding/json"
	"strings"
	"testing"

	"mercator-hq/mixpolicy/pkg/cli"
	"mercator-hq/mixpolicy/pkg/policy/manager"
)

func resetLintFlags(t *testing.T) {
	t.Helper()
	def := manager.DefaultRegistryConfig()
	lintFlags.strict = false
	lintFlags.maxMixes = def.MaxMixes
	lintFlags.maxCriteria = def.MaxCriteriaPerMix
	setOutput(t, "text")
}

func TestLintMixFiles_Valid(t *testing.T) {
	resetLintFlags(t)
	cmd, out, _ := newTestCmd(t)

	if err := lintMixFiles(cmd, []string{"testdata/mixes.yaml"}); err != nil {
		t.Fatalf("lintMixFiles() error = %v", err)
	}
	if got := out.String(); got != "1 file(s) ok\n" {
		t.Errorf("output = %q", got)
	}
}

func TestLintMixFiles_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		wantMsg string
	}{
		{"duplicate ids", "testdata/invalid.yaml", "duplicate registration id"},
		{"missing file", "testdata/nonexistent.yaml", "cannot open file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetLintFlags(t)
			cmd, out, _ := newTestCmd(t)

			err := lintMixFiles(cmd, []string{tt.file})
			if cli.ExitCode(err) != cli.ExitFindings {
				t.Fatalf("lintMixFiles() error = %v, want findings exit", err)
			}
			if !strings.Contains(out.String(), tt.wantMsg) {
				t.Errorf("output does not mention %q:\n%s", tt.wantMsg, out.String())
			}
		})
	}
}

func TestLintMixFiles_Limits(t *testing.T) {
	resetLintFlags(t)
	lintFlags.maxMixes = 1
	cmd, out, _ := newTestCmd(t)

	err := lintMixFiles(cmd, []string{"testdata/mixes.yaml"})
	if cli.ExitCode(err) != cli.ExitFindings {
		t.Fatalf("lintMixFiles() error = %v", err)
	}
	if !strings.Contains(out.String(), "capacity") {
		t.Errorf("output = %s", out.String())
	}
}

func TestLintMixFiles_Warnings(t *testing.T) {
	resetLintFlags(t)
	setOutput(t, "json")
	cmd, out, _ := newTestCmd(t)

	if err := lintMixFiles(cmd, []string{"testdata/shadowed.yaml"}); err != nil {
		t.Fatalf("warnings failed the lint without --strict: %v", err)
	}

	var report lintReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out.String())
	}
	if report.Errors != 0 || report.Warnings != 2 {
		t.Fatalf("report = %+v", report)
	}
	byMix := map[string]string{}
	for _, f := range report.Findings {
		byMix[f.Mix] = f.Message
	}
	if !strings.Contains(byMix["second"], `"first"`) {
		t.Errorf("second: %q", byMix["second"])
	}
	if !strings.Contains(byMix["catch-all"], "every playback stream") {
		t.Errorf("catch-all: %q", byMix["catch-all"])
	}

	lintFlags.strict = true
	cmd, _, _ = newTestCmd(t)
	if err := lintMixFiles(cmd, []string{"testdata/shadowed.yaml"}); cli.ExitCode(err) != cli.ExitFindings {
		t.Errorf("--strict error = %v", err)
	}
}

func TestLintMixFiles_BadOutput(t *testing.T) {
	resetLintFlags(t)
	setOutput(t, "junit")
	cmd, _, _ := newTestCmd(t)

	if err := lintMixFiles(cmd, []string{"testdata/mixes.yaml"}); cli.ExitCode(err) != cli.ExitUsage {
		t.Errorf("lintMixFiles() error = %v, want usage exit", err)
	}
}

func TestLintMixFiles_CSV(t *testing.T) {
	resetLintFlags(t)
	setOutput(t, "csv")
	cmd, out, _ := newTestCmd(t)

	_ = lintMixFiles(cmd, []string{"testdata/shadowed.yaml"})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 || lines[0] != "FILE,SEVERITY,MIX,MESSAGE" {
		t.Errorf("csv output:\n%s", out.String())
	}
}
