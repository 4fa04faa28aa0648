package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/coverage"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/passes"
)

const issCatalog = "ISS (ZARYA)\n" +
	"1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993\n" +
	"2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058\n"

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.txt")
	if err := os.WriteFile(path, []byte(issCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCoverageCommand(t *testing.T) {
	out, err := execute(t, "coverage", "--tle", writeCatalog(t),
		"--lat", "45.42", "--lng", "-75.70", "--at", "2025-02-14T12:00:00Z")
	if err != nil {
		t.Fatalf("coverage: %v", err)
	}

	var report coverage.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not a report: %v\n%s", err, out)
	}
	if report.Constellation != "starlink" || len(report.Satellites) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if report.Satellites[0].NORADID != 25544 {
		t.Errorf("norad id = %d", report.Satellites[0].NORADID)
	}
}

func TestPassesCommand(t *testing.T) {
	out, err := execute(t, "passes", "--tle", writeCatalog(t), "-c", "iridium",
		"--lat", "45.42", "--lng", "-75.70", "--at", "2025-02-14T00:00:00Z", "--hours", "24")
	if err != nil {
		t.Fatalf("passes: %v", err)
	}

	var results []passes.SatellitePasses
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("output is not a pass list: %v\n%s", err, out)
	}
	if len(results) != 1 || results[0].Error != "" {
		t.Fatalf("results = %+v", results)
	}
	if len(results[0].Passes) == 0 {
		t.Error("expected at least one ISS pass over Ottawa in 24h")
	}
}

func TestCommandErrors(t *testing.T) {
	catalog := writeCatalog(t)
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing tle flag", []string{"coverage"}, "tle"},
		{"unreadable file", []string{"coverage", "--tle", filepath.Join(t.TempDir(), "nope.txt")}, "read TLE file"},
		{"unknown constellation", []string{"coverage", "--tle", catalog, "-c", "oneweb"}, "unknown constellation"},
		{"bad instant", []string{"coverage", "--tle", catalog, "--at", "yesterday"}, "invalid --at"},
		{"horizon too long", []string{"passes", "--tle", catalog, "--hours", "48"}, "--hours"},
		{"bad latitude", []string{"passes", "--tle", catalog, "--lat", "123"}, "lat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
