package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// LineWriter turns a byte stream (typically a child process' output) into one
// log record per line.
type LineWriter struct {
	Logger *slog.Logger
	Level  slog.Level
	// Message is used for every record; the line itself goes in the "line" attribute.
	Message string

	mu  sync.Mutex
	buf []byte
}

var _ io.WriteCloser = (*LineWriter)(nil)

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Close flushes a trailing partial line.
func (w *LineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *LineWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	msg := w.Message
	if msg == "" {
		msg = "output"
	}
	Ensure(w.Logger).Log(context.Background(), w.Level, msg, "line", string(line))
}

// CompressedLog is a zstd-compressed file receiving a copy of the build output.
type CompressedLog struct {
	file    *os.File
	encoder *zstd.Encoder
}

var _ io.WriteCloser = (*CompressedLog)(nil)

// CreateCompressedLog creates (or truncates) path and returns a writer that
// compresses everything written to it.
func CreateCompressedLog(path string) (*CompressedLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	encoder, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		file.Close()
		return nil, err
	}
	return &CompressedLog{file: file, encoder: encoder}, nil
}

func (l *CompressedLog) Write(p []byte) (int, error) {
	return l.encoder.Write(p)
}

// Close finishes the zstd frame and closes the file.
func (l *CompressedLog) Close() error {
	encErr := l.encoder.Close()
	fileErr := l.file.Close()
	if encErr != nil {
		return encErr
	}
	return fileErr
}
