// Package metrics records build environment outcomes. The Prometheus
// implementation can be exported as a node_exporter textfile at exit.
package metrics

import "time"

// Operation names the lifecycle step being measured.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationBuild  Operation = "build"
)

// Outcome labels the result of an operation.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeContended Outcome = "contended"
	OutcomeInvalid   Outcome = "invalid"
)

// Recorder receives observations from the build environment manager.
type Recorder interface {
	ObserveOperation(op Operation, backend string, d time.Duration, outcome Outcome)
	IncLockContention(key string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveOperation(Operation, string, time.Duration, Outcome) {}
func (NoopRecorder) IncLockContention(string)                                   {}

// Ensure returns r, or a NoopRecorder when r is nil.
func Ensure(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
