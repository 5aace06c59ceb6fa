package simple

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cochaviz/pbuild/internal/build"
	"github.com/cochaviz/pbuild/internal/build/adapters/cowbuilder"
	"github.com/cochaviz/pbuild/internal/build/adapters/pbuilder"
	"github.com/cochaviz/pbuild/internal/logging"
	"github.com/cochaviz/pbuild/internal/metrics"
	"github.com/cochaviz/pbuild/internal/process"
	"github.com/cochaviz/pbuild/internal/scheduler"
)

// Options carries the collaborators shared by every command.
type Options struct {
	Logger   *slog.Logger
	Metrics  metrics.Recorder
	Output   io.Writer
	Launcher process.Launcher
}

// BuildOptions are the per-invocation inputs of Build.
type BuildOptions struct {
	SourceFile   string
	ManifestPath string
	BuildLogPath string
	SkipUpdate   bool
}

// Backend returns the backend registered under name.
func Backend(name string) (build.Backend, error) {
	switch name {
	case "cowbuilder":
		return cowbuilder.Backend{}, nil
	case "pbuilder":
		return pbuilder.Backend{}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

// NewService wires a BuildService for job.
func NewService(job Job, opts Options) (*build.BuildService, error) {
	job = job.WithDefaults()
	if err := job.Validate(); err != nil {
		return nil, err
	}
	backend, err := Backend(job.Backend)
	if err != nil {
		return nil, err
	}

	logger := logging.Ensure(opts.Logger).With("component", "config.simple")
	launcher := opts.Launcher
	if launcher == nil {
		launcher = &process.ExecLauncher{Logger: logger.With("component", "process")}
	}

	return &build.BuildService{
		Logger:   logger.With("service", "build"),
		Launcher: launcher,
		Preparer: &build.WorkspacePreparer{
			Dir:     job.Workspace,
			HookDir: job.HookDir,
			Logger:  logger.With("component", "workspace"),
		},
		Backend:      backend,
		BaseDir:      job.BaseDir,
		LockDir:      job.LockDir,
		LockAttempts: job.Lock.Attempts,
		LockDelay:    job.Lock.Delay,
		Sudo:         *job.Sudo,
		Prober:       build.LocalProber{},
		HostKeyring:  *job.HostKeyring,
		Metrics:      opts.Metrics,
		Output:       opts.Output,
	}, nil
}

// Build refreshes the job's base and builds the source package.
func Build(ctx context.Context, job Job, buildOpts BuildOptions, opts Options) (build.BuildOutput, error) {
	job = job.WithDefaults()
	service, err := NewService(job, opts)
	if err != nil {
		return build.BuildOutput{}, err
	}

	return service.Run(ctx, build.BuildRequest{
		Distribution:  job.Distribution,
		Architecture:  job.TargetArchitecture(),
		Configuration: job.Pbuilder,
		SourceFile:    buildOpts.SourceFile,
		OutputDir:     job.OutputDir,
		Cores:         *job.Cores,
		SkipUpdate:    buildOpts.SkipUpdate,
		BuildLogPath:  buildOpts.BuildLogPath,
		ManifestPath:  buildOpts.ManifestPath,
	})
}

// UpdateBase creates or refreshes the job's base.
func UpdateBase(ctx context.Context, job Job, opts Options) error {
	service, err := NewService(job, opts)
	if err != nil {
		return err
	}
	return service.UpdateBase(ctx, baseRequest(job))
}

// Render returns the pbuilderrc the job would use on this host.
func Render(ctx context.Context, job Job, opts Options) (string, error) {
	service, err := NewService(job, opts)
	if err != nil {
		return "", err
	}
	return service.Configure(ctx, job.Pbuilder).Render(), nil
}

// Refresh keeps the bases of every job current until ctx is done.
func Refresh(ctx context.Context, jobs []Job, every time.Duration, opts Options) error {
	logger := logging.Ensure(opts.Logger)

	targets := make([]scheduler.Target, 0, len(jobs))
	for _, job := range jobs {
		job = job.WithDefaults()
		service, err := NewService(job, opts)
		if err != nil {
			return err
		}
		request := baseRequest(job)
		targets = append(targets, scheduler.Target{
			Name: fmt.Sprintf("%s/%s-%s", job.Backend, job.Distribution, displayArch(job)),
			Refresh: func(ctx context.Context) error {
				return service.UpdateBase(ctx, request)
			},
		})
	}

	refresher := &scheduler.Refresher{
		Logger:   logger.With("component", "scheduler"),
		Interval: every,
		Targets:  targets,
	}
	return refresher.Run(ctx)
}

func baseRequest(job Job) build.BaseRequest {
	return build.BaseRequest{
		Distribution:  job.Distribution,
		Architecture:  job.TargetArchitecture(),
		Configuration: job.Pbuilder,
	}
}

func displayArch(job Job) string {
	if job.Architecture == "" {
		return "host"
	}
	return job.TargetArchitecture().String()
}
