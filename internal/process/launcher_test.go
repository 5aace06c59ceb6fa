package process

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func testLauncher() *ExecLauncher {
	return &ExecLauncher{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		BaseEnv: []string{"PATH=/usr/bin:/bin"},
	}
}

func TestRunStreamsOutputAndEnvironment(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	status, err := testLauncher().Run(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", `echo "$DIST-$ARCH"; echo oops >&2`},
		Env:    map[string]string{"DIST": "bookworm", "ARCH": "amd64"},
		Stdout: &out,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if status != 0 {
		t.Fatalf("Run() status = %d, want 0", status)
	}

	got := out.String()
	if !strings.Contains(got, "bookworm-amd64\n") {
		t.Fatalf("stdout = %q, want DIST/ARCH expanded", got)
	}
	if !strings.Contains(got, "oops\n") {
		t.Fatalf("stderr was not merged into the stdout sink: %q", got)
	}
}

func TestRunReportsExitStatus(t *testing.T) {
	t.Parallel()

	status, err := testLauncher().Run(context.Background(), Command{
		Name:   "sh",
		Args:   []string{"-c", "exit 3"},
		Stdout: io.Discard,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if status != 3 {
		t.Fatalf("Run() status = %d, want 3", status)
	}
}

func TestRunMissingBinary(t *testing.T) {
	t.Parallel()

	_, err := testLauncher().Run(context.Background(), Command{
		Name:   "pbuild-definitely-not-installed",
		Stdout: io.Discard,
	})
	if err == nil {
		t.Fatal("Run() error = nil, want start failure")
	}
}

func TestOutputCapturesStdout(t *testing.T) {
	t.Parallel()

	status, out, err := testLauncher().Output(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "printf 'amd64\\nextra\\n'"},
		Dir:  t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Output() error = %v", err)
	}
	if status != 0 {
		t.Fatalf("Output() status = %d, want 0", status)
	}
	if string(out) != "amd64\nextra\n" {
		t.Fatalf("Output() = %q", out)
	}
}

func TestCommandEnvListIsSorted(t *testing.T) {
	t.Parallel()

	cmd := Command{Env: map[string]string{"DIST": "sid", "ARCH": "arm64"}}
	got := cmd.EnvList()
	if len(got) != 2 || got[0] != "ARCH=arm64" || got[1] != "DIST=sid" {
		t.Fatalf("EnvList() = %v", got)
	}
}
