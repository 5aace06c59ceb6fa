package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cochaviz/pbuild/internal/logging"
	"github.com/cochaviz/pbuild/internal/pbuilderrc"
)

func TestPrepareWritesConfigurationAndHooks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	hookDir := filepath.Join(dir, "hookdir")
	if err := os.MkdirAll(hookDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	hook := filepath.Join(hookDir, "D10apt-update")
	if err := os.WriteFile(hook, []byte("#!/bin/sh\napt-get update\n"), 0o644); err != nil {
		t.Fatalf("write hook: %v", err)
	}

	preparer := &WorkspacePreparer{Dir: dir, Logger: logging.Discard()}
	ws, err := preparer.Prepare(context.Background(), pbuilderrc.Configuration{UseNetwork: true, MirrorSite: "http://deb.debian.org/debian"})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	if filepath.Dir(ws.ConfigFile) != dir || !strings.HasPrefix(filepath.Base(ws.ConfigFile), "pbuilderrc") {
		t.Fatalf("ConfigFile = %q, want pbuilderrc* in %q", ws.ConfigFile, dir)
	}
	content, err := os.ReadFile(ws.ConfigFile)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(content), "USENETWORK=yes\n") || !strings.Contains(string(content), "MIRRORSITE=http://deb.debian.org/debian\n") {
		t.Fatalf("config = %q", content)
	}

	if ws.HookDir != hookDir {
		t.Fatalf("HookDir = %q, want %q", ws.HookDir, hookDir)
	}
	info, err := os.Stat(hook)
	if err != nil {
		t.Fatalf("stat hook: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Fatalf("hook mode = %v, want 0755", info.Mode().Perm())
	}

	if err := ws.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(ws.ConfigFile); !os.IsNotExist(err) {
		t.Fatalf("config file still present after Cleanup: %v", err)
	}
	if _, err := os.Stat(hook); err != nil {
		t.Fatalf("hook removed by Cleanup: %v", err)
	}
}

func TestPrepareCreatesMissingHookDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ws, err := (&WorkspacePreparer{Dir: dir, Logger: logging.Discard()}).Prepare(context.Background(), pbuilderrc.Configuration{})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	defer ws.Cleanup()

	if ws.HookDir != filepath.Join(dir, "hookdir") {
		t.Fatalf("HookDir = %q", ws.HookDir)
	}
	if info, err := os.Stat(ws.HookDir); err != nil || !info.IsDir() {
		t.Fatalf("hook dir not created: %v", err)
	}
}

func TestPrepareConfigFilesAreUnique(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	preparer := &WorkspacePreparer{Dir: dir, Logger: logging.Discard()}

	first, err := preparer.Prepare(context.Background(), pbuilderrc.Configuration{})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	second, err := preparer.Prepare(context.Background(), pbuilderrc.Configuration{})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if first.ConfigFile == second.ConfigFile {
		t.Fatalf("both workspaces use %q", first.ConfigFile)
	}
}

func TestPrepareRejectsMissingWorkspace(t *testing.T) {
	t.Parallel()

	_, err := (&WorkspacePreparer{Dir: filepath.Join(t.TempDir(), "nope")}).Prepare(context.Background(), pbuilderrc.Configuration{})
	if KindOf(err) != KindIO {
		t.Fatalf("Prepare() error = %v, want io error", err)
	}
}

func TestEnsureOutputDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ws := &Workspace{Dir: dir}

	temp, err := ws.EnsureOutputDir("")
	if err != nil {
		t.Fatalf("EnsureOutputDir(\"\") error = %v", err)
	}
	if filepath.Dir(temp) != dir || !strings.HasPrefix(filepath.Base(temp), "binaries") {
		t.Fatalf("EnsureOutputDir(\"\") = %q", temp)
	}

	explicit := filepath.Join(dir, "results", "bookworm")
	got, err := ws.EnsureOutputDir(explicit)
	if err != nil || got != explicit {
		t.Fatalf("EnsureOutputDir(%q) = %q, %v", explicit, got, err)
	}
	if info, err := os.Stat(explicit); err != nil || !info.IsDir() {
		t.Fatalf("output dir not created: %v", err)
	}
}
