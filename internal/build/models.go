package build

import (
	"strconv"
	"strings"
	"time"

	"github.com/cochaviz/pbuild/arch"
	"github.com/cochaviz/pbuild/internal/artifacts"
	"github.com/cochaviz/pbuild/internal/pbuilderrc"

	"github.com/google/uuid"
)

// DefaultBaseDir is where pbuilder keeps its build roots.
const DefaultBaseDir = "/var/cache/pbuilder"

// AutoCores lets dpkg-buildpackage pick the parallelism.
const AutoCores = -1

// BuildTarget identifies the build root a job runs in.
type BuildTarget struct {
	Distribution string
	// Architecture may be arch.All, meaning "whatever the host is".
	Architecture     arch.Architecture
	HostArchitecture arch.Architecture
}

// NewBuildTarget validates the target. An empty requested architecture
// defaults to the host architecture.
func NewBuildTarget(distribution string, requested, host arch.Architecture) (BuildTarget, error) {
	distribution = strings.TrimSpace(distribution)
	if distribution == "" {
		return BuildTarget{}, validationError("distribution is required")
	}
	if requested == "" {
		requested = host
	}
	if requested == "" {
		return BuildTarget{}, &BuildError{
			Kind:    KindResolution,
			Message: "no architecture configured and the host architecture is unknown",
			Hint:    "set the architecture explicitly",
		}
	}
	if requested == arch.All && host == "" {
		return BuildTarget{}, &BuildError{
			Kind:    KindResolution,
			Message: "architecture all needs the host architecture, which is unknown",
			Hint:    "is dpkg installed?",
		}
	}
	return BuildTarget{
		Distribution:     distribution,
		Architecture:     requested,
		HostArchitecture: host,
	}, nil
}

// EffectiveArchitecture is the architecture the base is built for.
func (t BuildTarget) EffectiveArchitecture() arch.Architecture {
	return arch.Effective(t.Architecture, t.HostArchitecture)
}

// Foreign reports whether the base needs emulation on this host.
func (t BuildTarget) Foreign() bool {
	return t.EffectiveArchitecture() != t.HostArchitecture
}

// BootstrapTool picks debootstrap or qemu-debootstrap for the base.
func (t BuildTarget) BootstrapTool() string {
	return arch.BootstrapTool(t.HostArchitecture, t.EffectiveArchitecture())
}

// Key identifies the base: "<distribution>-<architecture>".
func (t BuildTarget) Key() string {
	return t.Distribution + "-" + t.EffectiveArchitecture().String()
}

// BaseName is the file name of the build root under the base directory.
func (t BuildTarget) BaseName() string {
	return "base-" + t.Key()
}

// Env is exported to every backend invocation for use by hook scripts.
func (t BuildTarget) Env() map[string]string {
	return map[string]string{
		"DIST": t.Distribution,
		"ARCH": t.EffectiveArchitecture().String(),
	}
}

// BuildInvocation is one package build inside a prepared environment.
type BuildInvocation struct {
	ID         uuid.UUID
	OutputDir  string
	SourceFile string
	// Cores is AutoCores or a positive job count.
	Cores int
}

// NewBuildInvocation assigns a fresh ID.
func NewBuildInvocation(outputDir, sourceFile string, cores int) BuildInvocation {
	return BuildInvocation{
		ID:         uuid.New(),
		OutputDir:  outputDir,
		SourceFile: sourceFile,
		Cores:      cores,
	}
}

// Validate checks the invocation without touching the filesystem.
func (i BuildInvocation) Validate() error {
	if strings.TrimSpace(i.OutputDir) == "" {
		return validationError("output directory is required")
	}
	if strings.TrimSpace(i.SourceFile) == "" {
		return validationError("source file is required")
	}
	_, err := JobsFlag(i.Cores)
	return err
}

// JobsFlag translates a core count into the dpkg-buildpackage -j option.
func JobsFlag(cores int) (string, error) {
	switch {
	case cores == AutoCores:
		return "-jauto", nil
	case cores > 0:
		return "-j" + strconv.Itoa(cores), nil
	default:
		return "", validationError("invalid number of cores %d: use %d for auto or a positive count", cores, AutoCores)
	}
}

// BuildRequest is everything needed to turn a source package into binaries.
type BuildRequest struct {
	Distribution  string
	Architecture  arch.Architecture
	Configuration pbuilderrc.Configuration

	SourceFile string
	// OutputDir defaults to a fresh binaries* directory in the workspace.
	OutputDir string
	Cores     int

	// SkipUpdate builds against the existing base without refreshing it.
	SkipUpdate bool
	// BuildLogPath, when set, receives a zstd-compressed copy of the output.
	BuildLogPath string
	// ManifestPath, when set, receives the artifact manifest as JSON.
	ManifestPath string
}

// BaseRequest asks for a base to be created or refreshed.
type BaseRequest struct {
	Distribution  string
	Architecture  arch.Architecture
	Configuration pbuilderrc.Configuration
}

// BuildOutput describes a successful build.
type BuildOutput struct {
	Invocation BuildInvocation
	Target     BuildTarget
	Backend    string
	Artifacts  []artifacts.Artifact
	StartedAt  time.Time
	FinishedAt time.Time
}
