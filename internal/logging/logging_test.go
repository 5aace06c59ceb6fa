package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestTextHandlerFormatsAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(FormatText, &buf, slog.LevelDebug).
		With("backend", "cowbuilder").
		WithGroup("target")

	logger.Info("creating base", "distribution", "bookworm", "error", errors.New("exit status 1"))

	got := buf.String()
	for _, want := range []string{
		"INFO ",
		"| creating base",
		"backend=cowbuilder",
		"target.distribution=bookworm",
		`target.error="exit status 1"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}

func TestTextHandlerRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	var level slog.LevelVar
	level.Set(slog.LevelWarn)
	logger := New(FormatText, &buf, &level)

	logger.Info("hidden")
	logger.Warn("shown")
	if got := buf.String(); strings.Contains(got, "hidden") || !strings.Contains(got, "shown") {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestJSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	New(FormatJSON, &buf, nil).Info("build finished", "artifacts", 3)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("json.Unmarshal() error = %v (output %q)", err, buf.String())
	}
	if record["msg"] != "build finished" || record["artifacts"] != float64(3) {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestParseHelpers(t *testing.T) {
	t.Parallel()

	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Fatalf("ParseFormat(json) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("ParseFormat(xml) error = nil")
	}
	if l, err := ParseLevel("warning"); err != nil || l != slog.LevelWarn {
		t.Fatalf("ParseLevel(warning) = %v, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("ParseLevel(loud) error = nil")
	}
}

func TestLineWriterSplitsLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := &LineWriter{Logger: New(FormatText, &buf, nil), Level: slog.LevelInfo, Message: "cowbuilder"}

	io.WriteString(w, "I: Installing the build-deps\r\nI: Copying")
	io.WriteString(w, " source file\npartial")
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d records, want 3: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `line="I: Installing the build-deps"`) {
		t.Errorf("first record = %q", lines[0])
	}
	if !strings.Contains(lines[1], `line="I: Copying source file"`) {
		t.Errorf("second record = %q", lines[1])
	}
	if !strings.Contains(lines[2], "line=partial") {
		t.Errorf("third record = %q", lines[2])
	}
}

func TestCompressedLogRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "build.log.zst")
	log, err := CreateCompressedLog(path)
	if err != nil {
		t.Fatalf("CreateCompressedLog() error = %v", err)
	}
	if _, err := io.WriteString(log, "dpkg-buildpackage: info: full upload\n"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		t.Fatalf("zstd.NewReader() error = %v", err)
	}
	defer decoder.Close()

	data, err := io.ReadAll(decoder)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "dpkg-buildpackage: info: full upload\n" {
		t.Fatalf("decompressed = %q", data)
	}
}
