package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cochaviz/pbuild/internal/process"
)

const dpkgSourceHint = "is dpkg-dev installed?"

// sourcePackage returns the .dsc to build. A source file is passed through
// unchanged. An unpacked source tree is packed with dpkg-source -b inside the
// workspace, which must then hold exactly one .dsc.
func (s *BuildService) sourcePackage(ctx context.Context, logger *slog.Logger, workspace *Workspace, source string) (string, error) {
	info, err := os.Stat(source)
	if err != nil || !info.IsDir() {
		return source, nil
	}

	dir, err := filepath.Abs(source)
	if err != nil {
		return "", ioError("resolve source directory", err)
	}
	logger.Info("building source package", "directory", dir)

	cmd := process.Command{
		Name:   "dpkg-source",
		Args:   []string{"-b", dir},
		Dir:    workspace.Dir,
		Stdout: s.output(),
		Stderr: s.output(),
	}
	status, err := s.Launcher.Run(ctx, cmd)
	if err != nil {
		return "", &BuildError{Kind: KindTool, Message: "cannot run dpkg-source", Hint: dpkgSourceHint, Err: err}
	}
	if status != 0 {
		return "", &BuildError{Kind: KindTool, Message: fmt.Sprintf("dpkg-source exited with status %d", status), Hint: dpkgSourceHint}
	}

	return findSourcePackage(workspace.Dir)
}

// findSourcePackage returns the single .dsc in dir.
func findSourcePackage(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.dsc"))
	if err != nil {
		return "", ioError("list source packages", err)
	}
	switch len(matches) {
	case 0:
		return "", &BuildError{Kind: KindTool, Message: fmt.Sprintf("no dsc file found in %s", dir), Hint: dpkgSourceHint}
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, match := range matches {
			names[i] = filepath.Base(match)
		}
		return "", validationError("more than one dsc file found in %s: %s", dir, strings.Join(names, ", "))
	}
}
