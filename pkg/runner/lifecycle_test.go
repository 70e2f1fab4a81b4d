package runner

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeDrainer struct {
	drained bool
	delay   time.Duration
}

func (d *fakeDrainer) Drain() error {
	time.Sleep(d.delay)
	d.drained = true
	return nil
}

func TestRunnerLifecycle(t *testing.T) {
	d := &fakeDrainer{}
	started, stopped := false, false
	r := NewLifecycleRunner(d, Hooks{
		OnStart: func() { started = true },
		OnStop:  func() { stopped = true },
	}, time.Second)

	err := r.Run(context.Background(), func(ctx context.Context) error {
		if r.State() != StateRunning {
			t.Errorf("work ran in state %d", r.State())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !started || !stopped {
		t.Fatalf("hooks: started=%v stopped=%v", started, stopped)
	}
	if !d.drained {
		t.Fatalf("drainer not invoked")
	}
	if r.State() != StateStopped {
		t.Fatalf("final state %d", r.State())
	}
}

func TestRunnerPropagatesWorkError(t *testing.T) {
	wantErr := errors.New("session blew up")
	r := NewLifecycleRunner(nil, Hooks{}, time.Second)
	if err := r.Run(context.Background(), func(ctx context.Context) error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}

func TestRunnerRejectsReuse(t *testing.T) {
	r := NewLifecycleRunner(nil, Hooks{}, time.Second)
	r.Run(context.Background(), func(ctx context.Context) error { return nil })
	if err := r.Run(context.Background(), nil); err == nil {
		t.Fatalf("second run must fail")
	}
}

func TestStopCancelsWorkContext(t *testing.T) {
	r := NewLifecycleRunner(nil, Hooks{}, time.Second)
	done := make(chan error, 1)
	go func() {
		done <- r.Run(context.Background(), func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		})
	}()

	for r.State() != StateRunning {
		time.Sleep(time.Millisecond)
	}
	r.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stop did not cancel the work context")
	}
}

func TestDrainTimeout(t *testing.T) {
	d := &fakeDrainer{delay: 200 * time.Millisecond}
	r := NewLifecycleRunner(d, Hooks{}, 10*time.Millisecond)
	err := r.Run(context.Background(), func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatalf("expected drain timeout")
	}
}
