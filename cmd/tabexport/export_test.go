package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeCSV(t *testing.T, rows int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Name,Size\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "asset %d,%d\n", i, 1536)
	}
	path := filepath.Join(t.TempDir(), "snapshots.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(testContext(t))
	return out.String(), errOut.String(), err
}

func TestExportCommand_CSV(t *testing.T) {
	src := writeCSV(t, 250)
	dst := filepath.Join(t.TempDir(), "out", "export.csv")

	stdout, stderr, err := execute(t, "export", src, "-o", dst, "--workers", "2", "--format", "Size=size")
	if err != nil {
		t.Fatalf("export error = %v\nstderr: %s", err, stderr)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 251 {
		t.Fatalf("output has %d lines, want 251", len(lines))
	}
	if lines[0] != "Name,Size" || lines[1] != "asset 0,1.5 KB" || lines[250] != "asset 249,1.5 KB" {
		t.Errorf("unexpected lines: %q %q %q", lines[0], lines[1], lines[250])
	}

	if !strings.Contains(stdout, "250/250 rows") {
		t.Errorf("stdout = %q, want summary", stdout)
	}

	var progress []string
	for _, line := range strings.Split(stderr, "\n") {
		if strings.HasPrefix(line, "Exporting ") {
			progress = append(progress, line)
		}
	}
	want := []string{"0% (0/250)", "40% (100/250)", "80% (200/250)", "100% (250/250)"}
	if len(progress) != len(want) {
		t.Fatalf("progress lines = %q, want %d lines", progress, len(want))
	}
	for i, suffix := range want {
		if !strings.HasSuffix(progress[i], suffix) {
			t.Errorf("progress[%d] = %q, want suffix %q", i, progress[i], suffix)
		}
	}
}

func TestExportCommand_Quiet(t *testing.T) {
	src := writeCSV(t, 5)
	dst := filepath.Join(t.TempDir(), "export.csv")

	stdout, stderr, err := execute(t, "export", src, "-o", dst, "-q", "--label", "Snap")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "" || strings.Contains(stderr, "Snap") {
		t.Errorf("quiet run printed stdout=%q stderr=%q", stdout, stderr)
	}
}

func TestExportCommand_Errors(t *testing.T) {
	src := writeCSV(t, 1)
	dst := filepath.Join(t.TempDir(), "export.csv")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no source", []string{"export", "-o", dst}, "expected a source"},
		{"both sources", []string{"export", src, "--pg-table", "t", "-o", dst}, "mutually exclusive"},
		{"missing output", []string{"export", src}, "output"},
		{"missing database", []string{"export", "--pg-table", "t", "--database-url", "", "-o", dst}, "--database-url"},
		{"missing file", []string{"export", src + ".nope", "-o", dst}, "no such file"},
		{"unknown formatter", []string{"export", src, "-o", dst, "--format", "Size=shout"}, "shout"},
		{"invalid chunk size", []string{"export", src, "-o", dst, "--chunk-size", "-5"}, "chunk"},
		{"unknown log level", []string{"export", src, "-o", dst, "--log-level", "loud"}, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestProgressPrinter_Pipe(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf)
	if p.tty {
		t.Fatal("buffer detected as terminal")
	}
}

func TestReservedOption(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, -1},
		{-2, -1},
		{1, 1},
		{3, 3},
	}
	for _, tt := range tests {
		if got := reservedOption(tt.in); got != tt.want {
			t.Errorf("reservedOption(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestExportCommand_ReserveNone(t *testing.T) {
	src := writeCSV(t, 250)
	dst := filepath.Join(t.TempDir(), "export.csv")

	_, stderr, err := execute(t, "export", src, "-o", dst, "-q",
		"--reserved-threads", "0", "--chunk-size", "1", "--log-level", "info")
	if err != nil {
		t.Fatalf("export error = %v\nstderr: %s", err, stderr)
	}

	want := fmt.Sprintf("workers=%d", min(runtime.GOMAXPROCS(0), 250))
	if !strings.Contains(stderr, want) {
		t.Errorf("stderr missing %q:\n%s", want, stderr)
	}
}
