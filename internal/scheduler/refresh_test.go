package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cochaviz/pbuild/internal/build"
	"github.com/cochaviz/pbuild/internal/logging"
)

func TestRefreshOnce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "success", want: true},
		{name: "contended", err: &build.BuildError{Kind: build.KindLockContention, Message: "busy"}},
		{name: "failed", err: &build.BuildError{Kind: build.KindTool, Message: "cowbuilder exited with status 1"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := &Refresher{Logger: logging.Discard()}
			got := r.refreshOnce(context.Background(), Target{
				Name:    "bookworm-amd64",
				Refresh: func(context.Context) error { return tt.err },
			})
			if got != tt.want {
				t.Fatalf("refreshOnce() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefreshOnceSkipsAfterCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	r := &Refresher{Logger: logging.Discard()}
	if r.refreshOnce(ctx, Target{Name: "x", Refresh: func(context.Context) error { called = true; return nil }}) {
		t.Fatal("refreshOnce() = true after cancel")
	}
	if called {
		t.Fatal("refresh ran after cancel")
	}
}

func TestRunRefreshesUntilCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	r := &Refresher{
		Logger:   logging.Discard(),
		Interval: 20 * time.Millisecond,
		Targets: []Target{{
			Name: "bookworm-amd64",
			Refresh: func(context.Context) error {
				if calls.Add(1) == 2 {
					cancel()
				}
				return nil
			},
		}},
	}

	go func() { done <- r.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if calls.Load() < 2 {
		t.Fatalf("refresh ran %d times, want at least 2", calls.Load())
	}
}

func TestRunRejectsBadConfiguration(t *testing.T) {
	t.Parallel()

	if err := (&Refresher{Targets: []Target{{Name: "x"}}}).Run(context.Background()); err == nil {
		t.Fatal("Run() without interval error = nil")
	}
	if err := (&Refresher{Interval: time.Hour}).Run(context.Background()); err == nil {
		t.Fatal("Run() without targets error = nil")
	}
}
