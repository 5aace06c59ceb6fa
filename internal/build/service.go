package build

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cochaviz/pbuild/arch"
	"github.com/cochaviz/pbuild/internal/artifacts"
	"github.com/cochaviz/pbuild/internal/logging"
	"github.com/cochaviz/pbuild/internal/metrics"
	"github.com/cochaviz/pbuild/internal/pbuilderrc"
	"github.com/cochaviz/pbuild/internal/process"
)

// BuildService runs whole jobs: resolve the target, prepare the workspace,
// refresh the base and build the package.
type BuildService struct {
	Logger    *slog.Logger
	Launcher  process.Launcher
	Preparer  EnvironmentPreparer
	Backend   Backend
	Collector ArtifactCollector

	BaseDir      string
	LockDir      string
	LockAttempts int
	LockDelay    time.Duration
	// Lock overrides the per-target file lock.
	Lock   Locker
	Sudo   bool
	Prober PathProber
	// HostKeyring adds the Debian archive keyring to debootstrap on Ubuntu hosts.
	HostKeyring bool

	Metrics metrics.Recorder
	Output  io.Writer
}

// ResolveTarget combines the requested architecture with the host's. A host
// architecture that cannot be determined is logged, not fatal.
func (s *BuildService) ResolveTarget(ctx context.Context, distribution string, requested arch.Architecture) (BuildTarget, error) {
	host, err := arch.ResolveHost(ctx, s.Launcher)
	if err != nil {
		s.logger().Warn("could not determine host architecture", "error", err)
		host = ""
	}
	return NewBuildTarget(distribution, requested, host)
}

// Configure returns the configuration as it will be written for this host.
func (s *BuildService) Configure(ctx context.Context, configuration pbuilderrc.Configuration) pbuilderrc.Configuration {
	if s.HostKeyring && hostIsUbuntu(ctx, s.Launcher) {
		s.logger().Debug("ubuntu host detected, adding debian archive keyring")
		configuration = withHostKeyring(configuration)
	}
	return configuration
}

// UpdateBase creates or refreshes the base of one target.
func (s *BuildService) UpdateBase(ctx context.Context, request BaseRequest) error {
	target, err := s.ResolveTarget(ctx, request.Distribution, request.Architecture)
	if err != nil {
		return err
	}
	logger := s.targetLogger(target)

	workspace, err := s.Preparer.Prepare(ctx, s.Configure(ctx, request.Configuration))
	if err != nil {
		return err
	}
	defer s.cleanup(logger, workspace)

	manager := NewManager(s.Backend, s.session(target, workspace, s.output(), logger))
	if err := manager.EnsureBase(ctx); err != nil {
		return err
	}
	logger.Info("base ready", "base", manager.Environment.BasePath())
	return nil
}

// Run builds request.SourceFile, a .dsc or an unpacked source tree, and
// returns the produced artifacts.
func (s *BuildService) Run(ctx context.Context, request BuildRequest) (BuildOutput, error) {
	started := time.Now()

	if request.SourceFile == "" {
		return BuildOutput{}, validationError("source file is required")
	}
	if _, err := JobsFlag(request.Cores); err != nil {
		return BuildOutput{}, err
	}

	target, err := s.ResolveTarget(ctx, request.Distribution, request.Architecture)
	if err != nil {
		return BuildOutput{}, err
	}
	logger := s.targetLogger(target)
	logger.Info("starting package build", "source", request.SourceFile)

	workspace, err := s.Preparer.Prepare(ctx, s.Configure(ctx, request.Configuration))
	if err != nil {
		return BuildOutput{}, err
	}
	defer s.cleanup(logger, workspace)
	logger.Info("build environment prepared", "config", workspace.ConfigFile, "hookdir", workspace.HookDir)

	sourceFile, err := s.sourcePackage(ctx, logger, workspace, request.SourceFile)
	if err != nil {
		return BuildOutput{}, err
	}

	outputDir, err := workspace.EnsureOutputDir(request.OutputDir)
	if err != nil {
		return BuildOutput{}, err
	}

	invocation := NewBuildInvocation(outputDir, sourceFile, request.Cores)
	logger = logger.With("invocation", invocation.ID)

	if err := s.build(ctx, logger, target, workspace, invocation, request); err != nil {
		return BuildOutput{}, err
	}

	output := BuildOutput{
		Invocation: invocation,
		Target:     target,
		Backend:    s.Backend.Name(),
		StartedAt:  started,
	}

	collector := s.Collector
	if collector == nil {
		collector = &artifacts.LocalCollector{Logger: logger, Skip: manifestSkip(outputDir, request.ManifestPath)}
	}
	if output.Artifacts, err = collector.Collect(outputDir); err != nil {
		return BuildOutput{}, ioError("collect build results", err)
	}
	output.FinishedAt = time.Now()
	logger.Info("build finished", "output", outputDir, "artifacts", len(output.Artifacts))

	if request.ManifestPath != "" {
		if err := artifacts.WriteManifest(request.ManifestPath, manifestFor(output)); err != nil {
			return BuildOutput{}, ioError("write manifest", err)
		}
		logger.Info("wrote artifact manifest", "path", request.ManifestPath)
	}

	return output, nil
}

// build refreshes the base unless skipped and runs the package build, teeing
// the tool output into the compressed build log when requested.
func (s *BuildService) build(ctx context.Context, logger *slog.Logger, target BuildTarget, workspace *Workspace, invocation BuildInvocation, request BuildRequest) (err error) {
	out := s.output()
	if request.BuildLogPath != "" {
		buildLog, logErr := logging.CreateCompressedLog(request.BuildLogPath)
		if logErr != nil {
			return ioError("create build log", logErr)
		}
		defer func() {
			if closeErr := buildLog.Close(); closeErr != nil {
				err = errors.Join(err, ioError("close build log", closeErr))
			}
		}()
		out = io.MultiWriter(out, buildLog)
	}

	manager := NewManager(s.Backend, s.session(target, workspace, out, logger))
	if request.SkipUpdate {
		logger.Info("skipping base update", "base", manager.Environment.BasePath())
	} else if err := manager.EnsureBase(ctx); err != nil {
		return err
	}

	return manager.Build(ctx, invocation)
}

func (s *BuildService) session(target BuildTarget, workspace *Workspace, out io.Writer, logger *slog.Logger) *Session {
	return &Session{
		Target:       target,
		Backend:      s.Backend.Name(),
		BaseDir:      s.BaseDir,
		ConfigFile:   workspace.ConfigFile,
		HookDir:      workspace.HookDir,
		Sudo:         s.Sudo,
		Launcher:     s.Launcher,
		Prober:       s.Prober,
		Lock:         s.Lock,
		LockDir:      s.LockDir,
		LockAttempts: s.LockAttempts,
		LockDelay:    s.LockDelay,
		Output:       out,
		Logger:       logger,
		Metrics:      s.Metrics,
	}
}

func (s *BuildService) cleanup(logger *slog.Logger, workspace *Workspace) {
	if err := workspace.Cleanup(); err != nil {
		logger.Warn("workspace cleanup failed", "error", err)
	}
}

func (s *BuildService) targetLogger(target BuildTarget) *slog.Logger {
	return s.logger().With(
		"distribution", target.Distribution,
		"architecture", target.EffectiveArchitecture(),
		"backend", s.Backend.Name(),
	)
}

func (s *BuildService) output() io.Writer {
	if s.Output != nil {
		return s.Output
	}
	return os.Stdout
}

func (s BuildService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// manifestSkip keeps the manifest out of its own listing when it is written
// into the output directory.
func manifestSkip(outputDir, manifestPath string) []string {
	if manifestPath == "" {
		return nil
	}
	abs, err := filepath.Abs(manifestPath)
	if err != nil || filepath.Dir(abs) != outputDir {
		return nil
	}
	return []string{filepath.Base(abs)}
}

func manifestFor(output BuildOutput) artifacts.Manifest {
	return artifacts.Manifest{
		InvocationID: output.Invocation.ID.String(),
		Distribution: output.Target.Distribution,
		Architecture: output.Target.EffectiveArchitecture().String(),
		Backend:      output.Backend,
		CreatedAt:    output.FinishedAt,
		Artifacts:    output.Artifacts,
	}
}
