// Package processtest provides a recording process.Launcher for tests.
package processtest

import (
	"context"
	"io"
	"sync"

	"github.com/cochaviz/pbuild/internal/process"
)

// Result is the scripted outcome of one command.
type Result struct {
	Status int
	Stdout string
	Err    error
}

// Launcher records every command it receives and replies with scripted results.
// Commands without a matching script exit 0 with no output.
type Launcher struct {
	mu       sync.Mutex
	commands []process.Command
	results  map[string][]Result

	// Hook, when set, runs before the result is returned.
	Hook func(cmd process.Command)
}

var _ process.Launcher = (*Launcher)(nil)

// Script queues results for the program name. Results are consumed in order;
// the last one is reused once the queue is drained.
func (l *Launcher) Script(name string, results ...Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.results == nil {
		l.results = map[string][]Result{}
	}
	l.results[name] = append(l.results[name], results...)
}

// Commands returns a copy of every recorded command.
func (l *Launcher) Commands() []process.Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]process.Command(nil), l.commands...)
}

func (l *Launcher) Run(ctx context.Context, cmd process.Command) (int, error) {
	result := l.record(cmd)
	if result.Err != nil {
		return -1, result.Err
	}
	if cmd.Stdout != nil && result.Stdout != "" {
		_, _ = io.WriteString(cmd.Stdout, result.Stdout)
	}
	return result.Status, nil
}

func (l *Launcher) Output(ctx context.Context, cmd process.Command) (int, []byte, error) {
	result := l.record(cmd)
	if result.Err != nil {
		return -1, nil, result.Err
	}
	return result.Status, []byte(result.Stdout), nil
}

func (l *Launcher) record(cmd process.Command) Result {
	l.mu.Lock()
	l.commands = append(l.commands, cmd)

	var result Result
	if queue := l.results[cmd.Name]; len(queue) > 0 {
		result = queue[0]
		if len(queue) > 1 {
			l.results[cmd.Name] = queue[1:]
		}
	}
	hook := l.Hook
	l.mu.Unlock()

	if hook != nil {
		hook(cmd)
	}
	return result
}
