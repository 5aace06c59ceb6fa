package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cochaviz/pbuild/internal/lock"
	"github.com/cochaviz/pbuild/internal/metrics"
	"github.com/cochaviz/pbuild/internal/process"
)

// Session holds what every backend invocation of one job shares: the target,
// the rendered configuration file, the hook directory and the collaborators
// used to run tools.
type Session struct {
	Target     BuildTarget
	Backend    string
	BaseDir    string
	ConfigFile string
	HookDir    string
	// Sudo prefixes every backend invocation with sudo.
	Sudo bool

	Launcher process.Launcher
	Prober   PathProber
	// Lock guards create/update. When nil a lock.FileLock under LockDir is used.
	Lock         Locker
	LockDir      string
	LockAttempts int
	LockDelay    time.Duration

	// Output receives the live tool output (os.Stdout when nil).
	Output  io.Writer
	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// BasePath joins the base directory with the target's base name plus suffix.
func (s *Session) BasePath(suffix string) string {
	dir := s.BaseDir
	if dir == "" {
		dir = DefaultBaseDir
	}
	return filepath.Join(dir, s.Target.BaseName()+suffix)
}

// CreateOrUpdate runs create when basePath is absent and update otherwise, all
// under the base lock.
func (s *Session) CreateOrUpdate(ctx context.Context, basePath string, create, update *CommandLine) error {
	logger := s.logger().With("base", basePath)
	requested := time.Now()

	err := s.locker().Do(ctx, func(ctx context.Context) error {
		exists, err := s.prober().Exists(basePath)
		if err != nil {
			return &BuildError{Kind: KindIO, Message: fmt.Sprintf("check base %s", basePath), Err: err}
		}

		op, line := metrics.OperationUpdate, update
		if !exists {
			op, line = metrics.OperationCreate, create
		}
		logger.Info("preparing base", "operation", op, "bootstrap", s.Target.BootstrapTool())

		started := time.Now()
		err = s.run(ctx, line, toolHint)
		s.observe(op, started, err)
		return err
	})

	var openErr *lock.OpenError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lock.ErrContended):
		s.metrics().IncLockContention(s.Target.Key())
		s.metrics().ObserveOperation(metrics.OperationUpdate, s.Backend, time.Since(requested), metrics.OutcomeContended)
		return &BuildError{
			Kind:    KindLockContention,
			Message: fmt.Sprintf("base %s is being updated by another job", s.Target.Key()),
			Hint:    "retry the job later",
			Err:     err,
		}
	case errors.As(err, &openErr):
		return &BuildError{Kind: KindIO, Message: "cannot open base lock", Err: err}
	default:
		return err
	}
}

// Build validates the invocation and then runs the command produced by line,
// which receives the translated -j option.
func (s *Session) Build(ctx context.Context, invocation BuildInvocation, line func(jobs string) *CommandLine) error {
	if err := invocation.Validate(); err != nil {
		s.observe(metrics.OperationBuild, time.Now(), err)
		return err
	}
	jobs, _ := JobsFlag(invocation.Cores)

	s.logger().Info("building package",
		"invocation", invocation.ID,
		"source", invocation.SourceFile,
		"output", invocation.OutputDir,
		"jobs", jobs,
	)

	started := time.Now()
	err := s.run(ctx, line(jobs), "")
	s.observe(metrics.OperationBuild, started, err)
	return err
}

func (s *Session) run(ctx context.Context, line *CommandLine, hint string) error {
	cmd := line.Command(s.Target.Env())
	cmd.Stdout = s.output()
	cmd.Stderr = cmd.Stdout

	s.logger().Debug("running backend", "command", cmd.String(), "env", cmd.EnvList())

	status, err := s.Launcher.Run(ctx, cmd)
	if err != nil {
		return &BuildError{Kind: KindTool, Message: fmt.Sprintf("cannot run %s", cmd.Name), Hint: hint, Err: err}
	}
	if status != 0 {
		return &BuildError{
			Kind:    KindTool,
			Message: fmt.Sprintf("%s exited with status %d", line.program, status),
			Hint:    hint,
		}
	}
	return nil
}

func (s *Session) observe(op metrics.Operation, started time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailed
		if KindOf(err) == KindValidation {
			outcome = metrics.OutcomeInvalid
		}
	}
	s.metrics().ObserveOperation(op, s.Backend, time.Since(started), outcome)
}

func (s *Session) locker() Locker {
	if s.Lock != nil {
		return s.Lock
	}
	return &lock.FileLock{
		Path:     lock.Path(s.LockDir, s.Target.Distribution, s.Target.EffectiveArchitecture().String()),
		Attempts: s.LockAttempts,
		Delay:    s.LockDelay,
		Logger:   s.logger(),
	}
}

func (s *Session) prober() PathProber {
	if s.Prober != nil {
		return s.Prober
	}
	return LocalProber{}
}

func (s *Session) output() io.Writer {
	if s.Output != nil {
		return s.Output
	}
	return os.Stdout
}

func (s *Session) metrics() metrics.Recorder {
	return metrics.Ensure(s.Metrics)
}

func (s *Session) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
