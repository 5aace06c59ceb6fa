package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cochaviz/pbuild/internal/pbuilderrc"
)

// Ensure WorkspacePreparer implements the EnvironmentPreparer interface.
var _ EnvironmentPreparer = (*WorkspacePreparer)(nil)

// WorkspacePreparer supplies the scratch files of a build inside a job workspace.
type WorkspacePreparer struct {
	// Dir is the job workspace. It must exist.
	Dir string
	// HookDir defaults to <Dir>/hookdir.
	HookDir string
	Logger  *slog.Logger
}

// Workspace is a prepared job workspace.
type Workspace struct {
	Dir        string
	ConfigFile string
	HookDir    string
}

// Prepare writes the rendered configuration to a uniquely named file and makes
// sure the hook directory exists with executable hooks.
func (p *WorkspacePreparer) Prepare(ctx context.Context, configuration pbuilderrc.Configuration) (*Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(p.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ioError(fmt.Sprintf("workspace %q does not exist", p.Dir), nil)
		}
		return nil, ioError(fmt.Sprintf("stat workspace %q", p.Dir), err)
	}
	if !info.IsDir() {
		return nil, ioError(fmt.Sprintf("workspace %q is not a directory", p.Dir), nil)
	}

	dir, err := filepath.Abs(p.Dir)
	if err != nil {
		return nil, ioError("resolve workspace", err)
	}
	workspace := &Workspace{Dir: dir}

	rendered := configuration.Render()
	p.logger().Info("using pbuilder configuration", "config", rendered, "extra_packages", configuration.ExtraPackageList())

	configFile, err := os.CreateTemp(dir, "pbuilderrc")
	if err != nil {
		return nil, ioError("create configuration file", err)
	}
	workspace.ConfigFile = configFile.Name()
	if _, err := configFile.WriteString(rendered); err != nil {
		configFile.Close()
		return nil, errors.Join(ioError("write configuration file", err), workspace.Cleanup())
	}
	if err := configFile.Close(); err != nil {
		return nil, errors.Join(ioError("write configuration file", err), workspace.Cleanup())
	}

	workspace.HookDir = p.HookDir
	if workspace.HookDir == "" {
		workspace.HookDir = filepath.Join(dir, "hookdir")
	}
	if workspace.HookDir, err = filepath.Abs(workspace.HookDir); err != nil {
		return nil, errors.Join(ioError("resolve hook directory", err), workspace.Cleanup())
	}
	if err := os.MkdirAll(workspace.HookDir, 0o755); err != nil {
		return nil, errors.Join(ioError("create hook directory", err), workspace.Cleanup())
	}
	if err := ensureExecutePermissions(workspace.HookDir); err != nil {
		return nil, errors.Join(ioError("prepare hooks", err), workspace.Cleanup())
	}

	return workspace, nil
}

// EnsureOutputDir creates requested, or a fresh binaries* directory in the
// workspace when requested is empty, and returns its absolute path.
func (w *Workspace) EnsureOutputDir(requested string) (string, error) {
	if requested == "" {
		dir, err := os.MkdirTemp(w.Dir, "binaries")
		if err != nil {
			return "", ioError("create output directory", err)
		}
		return dir, nil
	}

	dir, err := filepath.Abs(requested)
	if err != nil {
		return "", ioError("resolve output directory", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", ioError("create output directory", err)
	}
	return dir, nil
}

// Cleanup removes the configuration file. Hooks and build results stay.
func (w *Workspace) Cleanup() error {
	var cleanupErr error

	if w.ConfigFile != "" {
		if err := os.Remove(w.ConfigFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			cleanupErr = errors.Join(cleanupErr, fmt.Errorf("remove configuration file: %w", err))
		}
	}

	return cleanupErr
}

func (p *WorkspacePreparer) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// ensureExecutePermissions makes every regular file in dir executable.
func ensureExecutePermissions(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %q: %w", path, err)
		}
		if info.Mode().Perm() == 0o755 {
			continue
		}
		if err := os.Chmod(path, 0o755); err != nil {
			return fmt.Errorf("chmod %q: %w", path, err)
		}
	}

	return nil
}

func ioError(message string, err error) *BuildError {
	return &BuildError{Kind: KindIO, Message: message, Err: err}
}
