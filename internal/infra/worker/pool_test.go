package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"a2z-marketplace/internal/infra/logging"
)

func TestPool_RunsSubmittedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := NewPool(2, logging.Nop())
	p.Start(ctx)
	defer p.Stop()

	var ran int32
	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		if err := p.Submit(func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			done <- struct{}{}
			return nil
		}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("tasks did not run in time")
		}
	}
	if atomic.LoadInt32(&ran) != 3 {
		t.Errorf("expected 3 runs, got %d", ran)
	}
}

func TestPool_DropsWhenSaturated(t *testing.T) {
	// not started: nothing drains the queue
	p := NewPool(1, logging.Nop())
	noop := func(ctx context.Context) error { return nil }
	for i := 0; i < cap(p.jobs); i++ {
		if err := p.Submit(noop); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if err := p.Submit(noop); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestPool_SurvivesPanicsAndErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := NewPool(1, logging.Nop())
	p.Start(ctx)
	defer p.Stop()

	_ = p.Submit(func(ctx context.Context) error { panic("boom") })
	_ = p.Submit(func(ctx context.Context) error { return errors.New("failed") })
	done := make(chan struct{})
	_ = p.Submit(func(ctx context.Context) error { close(done); return nil })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not recover from panic")
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(1, logging.Nop())
	p.Start(context.Background())
	p.Stop()
	p.Stop()
	if err := p.Submit(func(ctx context.Context) error { return nil }); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}
