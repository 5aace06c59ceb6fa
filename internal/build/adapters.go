package build

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/cochaviz/pbuild/internal/artifacts"
	"github.com/cochaviz/pbuild/internal/pbuilderrc"
)

// Environment is an opened build root managed by one backend.
type Environment interface {
	// BasePath is the build root (directory or tarball) this environment uses.
	BasePath() string
	// CreateOrUpdateBase creates the base when absent and updates it otherwise,
	// holding the base lock for the duration.
	CreateOrUpdateBase(ctx context.Context) error
	// BuildInEnvironment builds a source package against the base.
	BuildInEnvironment(ctx context.Context, invocation BuildInvocation) error
}

// Backend opens environments of one kind (cowbuilder, pbuilder).
type Backend interface {
	Name() string
	Open(session *Session) Environment
}

// EnvironmentPreparer provisions the scratch files a build needs.
type EnvironmentPreparer interface {
	Prepare(ctx context.Context, configuration pbuilderrc.Configuration) (*Workspace, error)
}

// PathProber tests for the presence of a base.
type PathProber interface {
	Exists(path string) (bool, error)
}

// Locker runs an action under exclusive access. lock.FileLock implements it.
type Locker interface {
	Do(ctx context.Context, action func(ctx context.Context) error) error
}

// ArtifactCollector enumerates the results of a build.
type ArtifactCollector interface {
	Collect(dir string) ([]artifacts.Artifact, error)
}

// LocalProber checks paths on the local filesystem.
type LocalProber struct{}

var _ PathProber = LocalProber{}

func (LocalProber) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
