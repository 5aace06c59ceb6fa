package simple

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cochaviz/pbuild/arch"
	"github.com/cochaviz/pbuild/internal/build"
	"github.com/cochaviz/pbuild/internal/lock"
	"github.com/cochaviz/pbuild/internal/pbuilderrc"
)

// ArchitectureVariable is the orchestrator variable that overrides the job's
// architecture.
const ArchitectureVariable = "architecture"

// DefaultBackend is used when a job names no backend.
const DefaultBackend = "cowbuilder"

// Job is the YAML description of a build job.
type Job struct {
	Distribution string `yaml:"distribution"`
	Architecture string `yaml:"architecture"`
	Backend      string `yaml:"backend"`
	// Sudo defaults to true.
	Sudo *bool `yaml:"sudo"`
	// HostKeyring adds the Debian archive keyring on Ubuntu hosts; defaults to true.
	HostKeyring *bool `yaml:"host_keyring"`

	BaseDir   string `yaml:"base_dir"`
	LockDir   string `yaml:"lock_dir"`
	Workspace string `yaml:"workspace"`
	HookDir   string `yaml:"hook_dir"`
	OutputDir string `yaml:"output_dir"`
	// Cores is -1 (auto) or a positive count. Absent means auto.
	Cores *int `yaml:"cores"`

	Lock struct {
		Attempts int           `yaml:"attempts"`
		Delay    time.Duration `yaml:"delay"`
	} `yaml:"lock"`

	Pbuilder pbuilderrc.Configuration `yaml:"pbuilder"`
}

// NewJob returns a job with the chroot network enabled. A job file or flag
// can still turn it off.
func NewJob() Job {
	var job Job
	job.Pbuilder.UseNetwork = true
	return job
}

// LoadJob reads a job file over NewJob. Unknown keys are rejected.
func LoadJob(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("read job file: %w", err)
	}

	job := NewJob()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&job); err != nil && !errors.Is(err, io.EOF) {
		return Job{}, fmt.Errorf("parse job file %s: %w", path, err)
	}
	return job, nil
}

// WithDefaults fills every unset field.
func (j Job) WithDefaults() Job {
	if j.Backend == "" {
		j.Backend = DefaultBackend
	}
	if j.Sudo == nil {
		j.Sudo = boolPtr(true)
	}
	if j.HostKeyring == nil {
		j.HostKeyring = boolPtr(true)
	}
	if j.BaseDir == "" {
		j.BaseDir = build.DefaultBaseDir
	}
	if j.LockDir == "" {
		j.LockDir = lock.DefaultDir
	}
	if j.Workspace == "" {
		j.Workspace = "."
	}
	if j.Cores == nil {
		j.Cores = intPtr(build.AutoCores)
	}
	return j
}

// ApplyEnvironment lets the orchestrator override the architecture.
func (j Job) ApplyEnvironment(env map[string]string) Job {
	if value, ok := env[ArchitectureVariable]; ok && strings.TrimSpace(value) != "" {
		j.Architecture = strings.TrimSpace(value)
	}
	return j
}

// Validate checks the fields the build cannot run without.
func (j Job) Validate() error {
	var errs error
	if strings.TrimSpace(j.Distribution) == "" {
		errs = errors.Join(errs, errors.New("distribution is required"))
	}
	if j.Backend != "cowbuilder" && j.Backend != "pbuilder" {
		errs = errors.Join(errs, fmt.Errorf("unknown backend %q (expected cowbuilder or pbuilder)", j.Backend))
	}
	if j.Architecture != "" {
		if _, err := arch.Parse(j.Architecture); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	if j.Cores != nil {
		if _, err := build.JobsFlag(*j.Cores); err != nil {
			errs = errors.Join(errs, fmt.Errorf("cores must be -1 (auto) or positive, got %d", *j.Cores))
		}
	}
	if errs != nil {
		return &build.BuildError{Kind: build.KindValidation, Message: "invalid job", Err: errs}
	}
	return nil
}

// TargetArchitecture returns the parsed architecture, empty meaning the host's.
func (j Job) TargetArchitecture() arch.Architecture {
	if j.Architecture == "" {
		return ""
	}
	return arch.Normalize(j.Architecture)
}

// Environment returns the process environment overlaid with envFile (when
// given).
func Environment(envFile string) (map[string]string, error) {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok {
			env[key] = value
		}
	}
	if envFile == "" {
		return env, nil
	}

	fromFile, err := godotenv.Read(envFile)
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", envFile, err)
	}
	for key, value := range fromFile {
		env[key] = value
	}
	return env, nil
}

func boolPtr(v bool) *bool {
	return &v
}

func intPtr(v int) *int {
	return &v
}
