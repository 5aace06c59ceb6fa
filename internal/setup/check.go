package setup

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
)

var packageLogger *slog.Logger = slog.Default()

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// SetLogger configures the package logger used for host checks.
func SetLogger(logger *slog.Logger) {
	if logger == nil {
		packageLogger = slog.Default()
		return
	}
	packageLogger = logger
}

func getLogger() *slog.Logger {
	if packageLogger != nil {
		return packageLogger
	}
	return slog.Default()
}

// Requirement is an executable pbuild needs on PATH.
type Requirement struct {
	Program string
	Purpose string
}

// Result is the outcome of checking one Requirement.
type Result struct {
	Requirement
	Path string
	Err  error
}

// Requirements lists the programs needed to run backend.
func Requirements(backend string, sudo bool) []Requirement {
	reqs := []Requirement{
		{Program: backend, Purpose: "manages the build root"},
		{Program: "debootstrap", Purpose: "populates new build roots"},
		{Program: "dpkg", Purpose: "reports the host architecture"},
	}
	if backend == "cowbuilder" {
		reqs = append(reqs, Requirement{Program: "pbuilder", Purpose: "used by cowbuilder for builds"})
	}
	if sudo {
		reqs = append(reqs, Requirement{Program: "sudo", Purpose: "runs the backend as root"})
	}
	return reqs
}

// Verify checks every requirement of backend and returns all results. The
// error joins one entry per missing program.
func Verify(backend string, sudo bool) ([]Result, error) {
	var (
		results []Result
		missing error
	)
	for _, req := range Requirements(backend, sudo) {
		path, err := lookPath(req.Program)
		result := Result{Requirement: req, Path: path}
		if err != nil {
			result.Err = err
			missing = errors.Join(missing, fmt.Errorf("%s (%s) is not installed", req.Program, req.Purpose))
			getLogger().Warn("missing program", "program", req.Program, "purpose", req.Purpose)
		} else {
			getLogger().Debug("found program", "program", req.Program, "path", path)
		}
		results = append(results, result)
	}
	return results, missing
}
