package build

import (
	"context"
	"errors"
	"log/slog"
)

// Manager is the outer boundary of the build environment manager: it opens a
// backend for a session and reports each operation as a plain success flag,
// logging the reason on failure.
type Manager struct {
	Session     *Session
	Environment Environment
	Logger      *slog.Logger
}

// NewManager opens backend for session.
func NewManager(backend Backend, session *Session) *Manager {
	if session.Backend == "" {
		session.Backend = backend.Name()
	}
	return &Manager{
		Session:     session,
		Environment: backend.Open(session),
		Logger:      session.Logger,
	}
}

// CreateOrUpdateBase makes sure the base exists and is current.
func (m *Manager) CreateOrUpdateBase(ctx context.Context) bool {
	return m.report("create or update base", m.EnsureBase(ctx))
}

// BuildInEnvironment builds sourceFile into outputDir with the given number of
// cores (AutoCores for automatic).
func (m *Manager) BuildInEnvironment(ctx context.Context, outputDir, sourceFile string, cores int) bool {
	return m.report("build package", m.Build(ctx, NewBuildInvocation(outputDir, sourceFile, cores)))
}

// EnsureBase is CreateOrUpdateBase returning the error for callers that need
// its kind.
func (m *Manager) EnsureBase(ctx context.Context) error {
	return m.Environment.CreateOrUpdateBase(ctx)
}

// Build is BuildInEnvironment returning the error.
func (m *Manager) Build(ctx context.Context, invocation BuildInvocation) error {
	return m.Environment.BuildInEnvironment(ctx, invocation)
}

func (m *Manager) report(operation string, err error) bool {
	if err == nil {
		return true
	}

	logger := m.logger().With("operation", operation, "base", m.Environment.BasePath())
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		logger.Error("operation failed", "error", err)
		return false
	}

	attrs := []any{"kind", buildErr.Kind, "error", buildErr.Error()}
	if buildErr.Hint != "" {
		attrs = append(attrs, "hint", buildErr.Hint)
	}
	if buildErr.Kind == KindLockContention {
		logger.Warn("operation skipped", attrs...)
	} else {
		logger.Error("operation failed", attrs...)
	}
	return false
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
