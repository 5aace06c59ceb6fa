package build

import "github.com/cochaviz/pbuild/internal/process"

// CommandLine accumulates the argument vector of a backend invocation in
// order. Options are kept as name/value pairs so tests and logs can refer to
// them by name.
type CommandLine struct {
	program string
	sudo    bool
	args    []string
	options map[string][]string
}

// NewCommandLine starts a command for program, optionally run through sudo.
func NewCommandLine(program string, sudo bool) *CommandLine {
	return &CommandLine{program: program, sudo: sudo, options: map[string][]string{}}
}

// Flag appends a bare switch such as --create.
func (c *CommandLine) Flag(name string) *CommandLine {
	c.args = append(c.args, name)
	c.options[name] = append(c.options[name], "")
	return c
}

// Option appends "name value".
func (c *CommandLine) Option(name, value string) *CommandLine {
	c.args = append(c.args, name, value)
	c.options[name] = append(c.options[name], value)
	return c
}

// Repeat appends "name value" once per value, preserving order.
func (c *CommandLine) Repeat(name string, values ...string) *CommandLine {
	for _, value := range values {
		c.Option(name, value)
	}
	return c
}

// Positional appends plain arguments.
func (c *CommandLine) Positional(values ...string) *CommandLine {
	c.args = append(c.args, values...)
	return c
}

// Values returns every value given for the named option.
func (c *CommandLine) Values(name string) []string {
	return append([]string(nil), c.options[name]...)
}

// Argv returns the full argument vector, sudo included.
func (c *CommandLine) Argv() []string {
	argv := make([]string, 0, len(c.args)+2)
	if c.sudo {
		argv = append(argv, "sudo")
	}
	argv = append(argv, c.program)
	return append(argv, c.args...)
}

// Command converts the line into a process.Command with env overlaid.
func (c *CommandLine) Command(env map[string]string) process.Command {
	argv := c.Argv()
	return process.Command{
		Name: argv[0],
		Args: argv[1:],
		Env:  env,
	}
}
