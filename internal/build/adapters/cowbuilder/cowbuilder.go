// Package cowbuilder drives copy-on-write build roots with cowbuilder(8).
package cowbuilder

import (
	"context"

	"github.com/cochaviz/pbuild/internal/build"
)

const program = "cowbuilder"

// Backend opens cowbuilder environments.
type Backend struct{}

var _ build.Backend = Backend{}

func (Backend) Name() string {
	return program
}

func (Backend) Open(session *build.Session) build.Environment {
	return &Environment{session: session, basePath: session.BasePath("")}
}

// Environment is a cowbuilder base directory.
type Environment struct {
	session  *build.Session
	basePath string
}

var _ build.Environment = (*Environment)(nil)

func (e *Environment) BasePath() string {
	return e.basePath
}

func (e *Environment) CreateOrUpdateBase(ctx context.Context) error {
	return e.session.CreateOrUpdate(ctx, e.basePath, e.createCommand(), e.updateCommand())
}

func (e *Environment) BuildInEnvironment(ctx context.Context, invocation build.BuildInvocation) error {
	return e.session.Build(ctx, invocation, func(jobs string) *build.CommandLine {
		return e.buildCommand(invocation, jobs)
	})
}

func (e *Environment) createCommand() *build.CommandLine {
	target := e.session.Target
	effective := target.EffectiveArchitecture().String()

	line := build.NewCommandLine(program, e.session.Sudo).
		Flag("--create").
		Option("--basepath", e.basePath).
		Option("--distribution", target.Distribution).
		Option("--debootstrap", target.BootstrapTool()).
		Option("--architecture", effective)
	if target.Foreign() {
		line.Repeat("--debootstrapopts", "--arch", effective)
	}
	return line.
		Option("--debootstrapopts", "--variant=buildd").
		Option("--configfile", e.session.ConfigFile).
		Option("--hookdir", e.session.HookDir)
}

func (e *Environment) updateCommand() *build.CommandLine {
	return build.NewCommandLine(program, e.session.Sudo).
		Flag("--update").
		Option("--basepath", e.basePath).
		Option("--distribution", e.session.Target.Distribution).
		Option("--configfile", e.session.ConfigFile)
}

func (e *Environment) buildCommand(invocation build.BuildInvocation, jobs string) *build.CommandLine {
	return build.NewCommandLine(program, e.session.Sudo).
		Option("--build", invocation.SourceFile).
		Option("--basepath", e.basePath).
		Option("--buildresult", invocation.OutputDir).
		Option("--distribution", e.session.Target.Distribution).
		Repeat("--debbuildopts", "-sa", jobs).
		Option("--hookdir", e.session.HookDir).
		Option("--configfile", e.session.ConfigFile)
}
