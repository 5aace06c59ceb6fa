package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorderCounts(t *testing.T) {
	t.Parallel()

	r := NewPrometheusRecorder(nil)
	r.ObserveOperation(OperationCreate, "cowbuilder", 3*time.Minute, OutcomeSuccess)
	r.ObserveOperation(OperationBuild, "cowbuilder", time.Minute, OutcomeFailed)
	r.ObserveOperation(OperationBuild, "cowbuilder", time.Minute, OutcomeFailed)
	r.IncLockContention("bookworm-amd64")

	if got := testutil.ToFloat64(r.operations.WithLabelValues("build", "cowbuilder", "failed")); got != 2 {
		t.Fatalf("failed builds = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.lockContention.WithLabelValues("bookworm-amd64")); got != 1 {
		t.Fatalf("lock contention = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.lastSuccess.WithLabelValues("create", "cowbuilder")); got <= 0 {
		t.Fatalf("last success timestamp = %v, want > 0", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	r := NewPrometheusRecorder(nil)
	r.ObserveOperation(OperationUpdate, "pbuilder", time.Second, OutcomeContended)

	path := filepath.Join(t.TempDir(), "pbuild.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `pbuild_operations_total{backend="pbuilder",operation="update",outcome="contended"} 1`) {
		t.Fatalf("textfile missing counter:\n%s", data)
	}
}

func TestNilAndNoopRecorders(t *testing.T) {
	t.Parallel()

	var p *PrometheusRecorder
	p.ObserveOperation(OperationBuild, "x", time.Second, OutcomeSuccess)
	p.IncLockContention("x")

	r := Ensure(nil)
	r.ObserveOperation(OperationBuild, "x", time.Second, OutcomeSuccess)
	if _, ok := r.(NoopRecorder); !ok {
		t.Fatalf("Ensure(nil) = %T, want NoopRecorder", r)
	}
}
