package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cochaviz/pbuild/arch"
	config "github.com/cochaviz/pbuild/config"
	"github.com/cochaviz/pbuild/internal/artifacts"
	"github.com/cochaviz/pbuild/internal/build"
	"github.com/cochaviz/pbuild/internal/logging"
	"github.com/cochaviz/pbuild/internal/metrics"
	"github.com/cochaviz/pbuild/internal/process"
	"github.com/cochaviz/pbuild/internal/setup"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"

	// exitTempFail is EX_TEMPFAIL from sysexits.h: the base was busy, retry later.
	exitTempFail    = 75
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// app holds the state shared by every command. The logger is replaced once
// the global flags are parsed.
type app struct {
	levelVar slog.LevelVar
	logger   *slog.Logger
	stderr   io.Writer
	stdout   io.Writer

	logLevel        string
	logFormat       string
	format          logging.Format
	metricsTextfile string
	recorder        *metrics.PrometheusRecorder
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	a.levelVar.Set(slog.LevelInfo)
	a.logger = logging.New(logging.FormatText, stderr, &a.levelVar)
	slog.SetDefault(a.logger)

	root := a.newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.writeMetrics()
	return a.exitCode(ctx, err)
}

func (a *app) exitCode(ctx context.Context, err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		a.logger.Warn("command interrupted", "error", err)
		return exitInterrupted
	case build.IsRetryable(err):
		a.logger.Warn("base busy, retry the job later", "error", err)
		return exitTempFail
	default:
		attrs := []any{"error", err}
		var buildErr *build.BuildError
		if errors.As(err, &buildErr) && buildErr.Hint != "" {
			attrs = append(attrs, "hint", buildErr.Hint)
		}
		a.logger.Error("command execution failed", attrs...)
		return 1
	}
}

func (a *app) writeMetrics() {
	if a.metricsTextfile == "" || a.recorder == nil {
		return
	}
	if err := a.recorder.WriteTextfile(a.metricsTextfile); err != nil {
		a.logger.Warn("could not write metrics", "path", a.metricsTextfile, "error", err)
	}
}

func (a *app) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pbuild",
		Short:         "Build Debian source packages in managed pbuilder/cowbuilder chroots",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", defaultLogFormat, "Log output format (text, json)")
	root.PersistentFlags().StringVar(&a.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(a.logLevel)
		if err != nil {
			return err
		}
		format, err := logging.ParseFormat(a.logFormat)
		if err != nil {
			return err
		}
		a.levelVar.Set(level)
		a.format = format
		a.logger = logging.New(format, a.stderr, &a.levelVar)
		slog.SetDefault(a.logger)
		setup.SetLogger(a.logger.With("component", "setup"))

		if a.metricsTextfile != "" {
			a.recorder = metrics.NewPrometheusRecorder(nil)
		}
		return nil
	}

	root.AddCommand(
		a.newBuildCommand(),
		a.newBaseCommand(),
		a.newConfigCommand(),
		a.newArchCommand(),
		a.newSetupCommand(),
	)
	return root
}

func (a *app) withLogger(logger *slog.Logger, output io.Writer) config.Options {
	opts := config.Options{Logger: logger, Output: output}
	if a.recorder != nil {
		opts.Metrics = a.recorder
	}
	return opts
}

// toolOutput is where backend output goes. In JSON mode every line becomes a
// log record so the stream stays machine readable.
func (a *app) toolOutput(logger *slog.Logger) io.WriteCloser {
	if a.format == logging.FormatJSON {
		return &logging.LineWriter{Logger: logger.With("stream", "tool"), Level: slog.LevelInfo, Message: "tool output"}
	}
	return nopCloser{a.stderr}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// jobFlags are the flags shared by every command that operates on a job.
type jobFlags struct {
	configFile   string
	envFile      string
	distribution string
	architecture string
	backend      string
	baseDir      string
	lockDir      string
	workspace    string
	hookDir      string
	outputDir    string
	cores        int
	noSudo       bool
}

func (f *jobFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.configFile, "config", "c", "", "Job file (YAML)")
	flags.StringVar(&f.envFile, "env-file", "", "Dotenv file with orchestrator variables (architecture=...)")
	flags.StringVar(&f.distribution, "dist", "", "Target distribution (e.g. bookworm)")
	flags.StringVar(&f.architecture, "arch", "", "Target architecture; 'all' means the host architecture")
	flags.StringVar(&f.backend, "backend", "", "Build backend (cowbuilder, pbuilder)")
	flags.StringVar(&f.baseDir, "base-dir", "", "Directory holding the build roots")
	flags.StringVar(&f.lockDir, "lock-dir", "", "Directory holding the base lock files")
	flags.StringVar(&f.workspace, "workspace", "", "Job workspace for scratch files")
	flags.StringVar(&f.hookDir, "hook-dir", "", "pbuilder hook directory (default <workspace>/hookdir)")
	flags.StringVar(&f.outputDir, "output", "", "Directory receiving the build results")
	flags.IntVar(&f.cores, "cores", build.AutoCores, "Parallel build jobs, -1 for auto")
	flags.BoolVar(&f.noSudo, "no-sudo", false, "Run the backend without sudo")
}

// load reads the job file, applies the orchestrator environment and then the
// flags the user set explicitly.
func (f *jobFlags) load(cmd *cobra.Command) (config.Job, error) {
	job := config.NewJob()
	if f.configFile != "" {
		loaded, err := config.LoadJob(f.configFile)
		if err != nil {
			return config.Job{}, err
		}
		job = loaded
	}

	env, err := config.Environment(f.envFile)
	if err != nil {
		return config.Job{}, err
	}
	job = job.ApplyEnvironment(env)

	flags := cmd.Flags()
	override := func(name string, dst *string, value string) {
		if flags.Changed(name) {
			*dst = value
		}
	}
	override("dist", &job.Distribution, f.distribution)
	override("arch", &job.Architecture, f.architecture)
	override("backend", &job.Backend, f.backend)
	override("base-dir", &job.BaseDir, f.baseDir)
	override("lock-dir", &job.LockDir, f.lockDir)
	override("workspace", &job.Workspace, f.workspace)
	override("hook-dir", &job.HookDir, f.hookDir)
	override("output", &job.OutputDir, f.outputDir)
	if flags.Changed("cores") {
		cores := f.cores
		job.Cores = &cores
	}
	if flags.Changed("no-sudo") {
		sudo := !f.noSudo
		job.Sudo = &sudo
	}

	job = job.WithDefaults()
	if err := job.Validate(); err != nil {
		return config.Job{}, err
	}
	return job, nil
}

func (a *app) newBuildCommand() *cobra.Command {
	var (
		job        jobFlags
		manifest   string
		buildLog   string
		skipUpdate bool
	)

	cmd := &cobra.Command{
		Use:   "build <file.dsc|source-dir>",
		Args:  cobra.ExactArgs(1),
		Short: "Refresh the build root and build a source package in it",
		RunE: func(cmd *cobra.Command, args []string) error {
			source := strings.TrimSpace(args[0])
			if source == "" {
				return fmt.Errorf("source package is required")
			}

			j, err := job.load(cmd)
			if err != nil {
				return err
			}
			cmdLogger := a.logger.With("command", "build", "source", source)
			out := a.toolOutput(cmdLogger)
			defer out.Close()

			output, err := config.Build(cmd.Context(), j, config.BuildOptions{
				SourceFile:   source,
				ManifestPath: manifest,
				BuildLogPath: buildLog,
				SkipUpdate:   skipUpdate,
			}, a.withLogger(cmdLogger, out))
			if err != nil {
				return err
			}

			for _, artifact := range output.Artifacts {
				path, err := artifacts.PathFromURI(artifact.URI)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, path)
			}
			cmdLogger.Info("build completed", "invocation", output.Invocation.ID, "duration", output.FinishedAt.Sub(output.StartedAt).Round(time.Second))
			return nil
		},
	}

	job.bind(cmd)
	cmd.Flags().StringVar(&manifest, "manifest", "", "Write a JSON manifest of the build results to this file")
	cmd.Flags().StringVar(&buildLog, "build-log", "", "Write a zstd-compressed copy of the build output to this file")
	cmd.Flags().BoolVar(&skipUpdate, "skip-update", false, "Build against the existing base without refreshing it")
	return cmd
}

func (a *app) newBaseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "base",
		Short: "Manage build root bases",
	}
	cmd.AddCommand(a.newBaseUpdateCommand(), a.newBaseRefreshCommand())
	return cmd
}

func (a *app) newBaseUpdateCommand() *cobra.Command {
	var job jobFlags

	cmd := &cobra.Command{
		Use:   "update",
		Args:  cobra.NoArgs,
		Short: "Create the base if it is missing, update it otherwise",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := job.load(cmd)
			if err != nil {
				return err
			}
			cmdLogger := a.logger.With("command", "base.update")
			out := a.toolOutput(cmdLogger)
			defer out.Close()
			return config.UpdateBase(cmd.Context(), j, a.withLogger(cmdLogger, out))
		},
	}

	job.bind(cmd)
	return cmd
}

func (a *app) newBaseRefreshCommand() *cobra.Command {
	var (
		configFiles []string
		envFile     string
		every       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Args:  cobra.NoArgs,
		Short: "Keep the bases of one or more jobs current until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(configFiles) == 0 {
				return fmt.Errorf("at least one --config is required")
			}
			env, err := config.Environment(envFile)
			if err != nil {
				return err
			}

			jobs := make([]config.Job, 0, len(configFiles))
			for _, path := range configFiles {
				j, err := config.LoadJob(path)
				if err != nil {
					return err
				}
				jobs = append(jobs, j.ApplyEnvironment(env).WithDefaults())
			}

			cmdLogger := a.logger.With("command", "base.refresh")
			cmdLogger.Info("refreshing bases; press Ctrl+C to stop", "jobs", len(jobs), "every", every)
			out := a.toolOutput(cmdLogger)
			defer out.Close()
			err = config.Refresh(cmd.Context(), jobs, every, a.withLogger(cmdLogger, out))
			if err == nil && cmd.Context().Err() != nil {
				return cmd.Context().Err()
			}
			return err
		},
	}

	cmd.Flags().StringArrayVarP(&configFiles, "config", "c", nil, "Job file (repeatable)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Dotenv file with orchestrator variables")
	cmd.Flags().DurationVar(&every, "every", 6*time.Hour, "Refresh interval")
	return cmd
}

func (a *app) newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect job configuration",
	}

	var job jobFlags
	render := &cobra.Command{
		Use:   "render",
		Args:  cobra.NoArgs,
		Short: "Print the pbuilderrc a job would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := job.load(cmd)
			if err != nil {
				return err
			}
			rendered, err := config.Render(cmd.Context(), j, a.withLogger(a.logger.With("command", "config.render"), a.stderr))
			if err != nil {
				return err
			}
			_, err = io.WriteString(a.stdout, rendered)
			return err
		},
	}
	job.bind(render)

	cmd.AddCommand(render)
	return cmd
}

func (a *app) newArchCommand() *cobra.Command {
	var requested string

	cmd := &cobra.Command{
		Use:   "arch",
		Args:  cobra.NoArgs,
		Short: "Show the host architecture and how a requested architecture resolves",
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := arch.ResolveHost(cmd.Context(), &process.ExecLauncher{Logger: a.logger})
			if err != nil {
				return &build.BuildError{Kind: build.KindResolution, Message: "cannot determine host architecture", Hint: "is dpkg installed?", Err: err}
			}
			fmt.Fprintf(a.stdout, "host\t%s\n", host)

			if requested == "" {
				return nil
			}
			target, err := arch.Parse(requested)
			if err != nil {
				return err
			}
			effective := arch.Effective(target, host)
			fmt.Fprintf(a.stdout, "effective\t%s\n", effective)
			fmt.Fprintf(a.stdout, "bootstrap\t%s\n", arch.BootstrapTool(host, effective))
			return nil
		},
	}

	cmd.Flags().StringVar(&requested, "arch", "", "Architecture to resolve against the host")
	return cmd
}

func (a *app) newSetupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Check the host",
	}

	var (
		backend string
		noSudo  bool
	)
	check := &cobra.Command{
		Use:   "check",
		Args:  cobra.NoArgs,
		Short: "Verify that the backend, debootstrap, dpkg and sudo are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := setup.Verify(backend, !noSudo)
			for _, result := range results {
				status := result.Path
				if result.Err != nil {
					status = "missing"
				}
				fmt.Fprintf(a.stdout, "%-12s %s\n", result.Program, status)
			}
			if err != nil {
				return &build.BuildError{Kind: build.KindTool, Message: "host is not ready", Hint: "install the missing packages", Err: err}
			}
			return nil
		},
	}
	check.Flags().StringVar(&backend, "backend", config.DefaultBackend, "Build backend (cowbuilder, pbuilder)")
	check.Flags().BoolVar(&noSudo, "no-sudo", false, "Do not require sudo")

	cmd.AddCommand(check)
	return cmd
}

