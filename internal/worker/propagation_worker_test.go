package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"khata/internal/amqp"
	"khata/internal/balance"
	"khata/internal/core"
)

type fakeLedger struct {
	mu      sync.Mutex
	from    []core.Date
	repairs int
	ensures atomic.Int32
	err     error
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	ctxErrs []error
}

func (f *fakeLedger) Repropagate(ctx context.Context, from core.Date) (balance.Result, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.from = append(f.from, from)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return balance.Result{Anchor: from, Visited: 3, Written: 1}, f.err
}

func (f *fakeLedger) RepairAll(ctx context.Context) (balance.Result, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repairs++
	return balance.Result{}, f.err
}

func (f *fakeLedger) EnsureToday(ctx context.Context) (bool, error) {
	return f.ensures.Add(1) == 1, f.err
}

func TestHandlePropagation(t *testing.T) {
	d := core.NewDate(2025, 6, 1)

	tests := []struct {
		name        string
		req         *amqp.PropagationRequest
		err         error
		wantFrom    int
		wantRepairs int
		wantErr     error
	}{
		{"from date", amqp.NewPropagationRequest(d, "import"), nil, 1, 0, nil},
		{"full repair", amqp.NewPropagationRequest(core.Date{}, "restore"), nil, 0, 1, nil},
		{"bad date", &amqp.PropagationRequest{ID: "x", From: "2025-13-40"}, nil, 0, 0, core.ErrValidation},
		{"store failure", amqp.NewPropagationRequest(d, ""), core.ErrStore, 1, 0, core.ErrStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeLedger{err: tt.err}
			w := NewPropagationWorker(f)

			err := w.HandlePropagation(context.Background(), tt.req)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if len(f.from) != tt.wantFrom || f.repairs != tt.wantRepairs {
				t.Fatalf("repropagations = %v, repairs = %d", f.from, f.repairs)
			}
			if tt.wantFrom == 1 && f.from[0] != d {
				t.Fatalf("propagated from %s, want %s", f.from[0], d)
			}
		})
	}
}

func TestHandlePropagationSharesInFlightCascade(t *testing.T) {
	f := &fakeLedger{started: make(chan struct{}, 2), release: make(chan struct{})}
	w := NewPropagationWorker(f)
	req := amqp.NewPropagationRequest(core.NewDate(2025, 6, 1), "")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	run := func() {
		defer wg.Done()
		errs <- w.HandlePropagation(context.Background(), req)
	}

	wg.Add(1)
	go run()
	<-f.started

	wg.Add(1)
	go run()
	time.Sleep(100 * time.Millisecond)
	close(f.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if n := f.calls.Load(); n != 1 {
		t.Fatalf("cascade ran %d times, want 1", n)
	}
}

func TestHandlePropagationSurvivesFirstCallerCancel(t *testing.T) {
	f := &fakeLedger{started: make(chan struct{}, 2), release: make(chan struct{})}
	w := NewPropagationWorker(f)
	first := &amqp.PropagationRequest{ID: "a", From: "2025-06-01"}
	second := &amqp.PropagationRequest{ID: "b", From: "2025-6-1"}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() { firstErr <- w.HandlePropagation(ctx, first) }()
	<-f.started

	secondErr := make(chan error, 1)
	go func() { secondErr <- w.HandlePropagation(context.Background(), second) }()
	time.Sleep(100 * time.Millisecond)
	cancel()
	close(f.release)

	if err := <-firstErr; err != nil {
		t.Fatalf("first caller: %v", err)
	}
	if err := <-secondErr; err != nil {
		t.Fatalf("second caller: %v", err)
	}
	if n := f.calls.Load(); n != 1 {
		t.Fatalf("cascade ran %d times, want 1", n)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, err := range f.ctxErrs {
		if err != nil {
			t.Fatalf("cascade saw a cancelled context: %v", err)
		}
	}
}

func TestStartupCheck(t *testing.T) {
	f := &fakeLedger{}
	w := NewPropagationWorker(f)
	if err := w.StartupCheck(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.StartupCheck(context.Background()); err != nil {
		t.Fatal(err)
	}

	failing := NewPropagationWorker(&fakeLedger{err: core.ErrStore})
	if err := failing.StartupCheck(context.Background()); !errors.Is(err, core.ErrStore) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunEnsureTodayStopsWithContext(t *testing.T) {
	f := &fakeLedger{}
	w := NewPropagationWorker(f)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.RunEnsureToday(ctx, 5*time.Millisecond) }()

	deadline := time.Now().Add(2 * time.Second)
	for f.ensures.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("ticker did not fire")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
