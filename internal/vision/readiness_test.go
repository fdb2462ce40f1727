package vision

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestReadinessTransitions(t *testing.T) {
	r := NewReadiness()

	if s, _ := r.State(); s != StateUninitialized {
		t.Fatalf("initial state = %s; want uninitialized", s)
	}

	r.SetLoading()
	if s, _ := r.State(); s != StateLoading {
		t.Fatalf("state = %s; want loading", s)
	}
	if r.Ready() {
		t.Error("loading must not report ready")
	}

	r.SetReady()
	if !r.Ready() {
		t.Error("expected ready after SetReady")
	}

	// Terminal: a late failure report does not demote a ready machine.
	r.SetFailed(errors.New("late"))
	if !r.Ready() {
		t.Error("ready is terminal")
	}
}

func TestReadinessFailure(t *testing.T) {
	r := NewReadiness()
	r.SetLoading()

	cause := errors.New("model file missing")
	r.SetFailed(cause)

	s, err := r.State()
	if s != StateFailed {
		t.Fatalf("state = %s; want failed", s)
	}
	if !errors.Is(err, cause) {
		t.Errorf("err = %v; want the recorded cause", err)
	}
	if r.Ready() {
		t.Error("failed must not report ready")
	}
}

func TestReadinessAwait(t *testing.T) {
	r := NewReadiness()
	r.SetLoading()

	got := make(chan error, 1)
	go func() {
		got <- r.Await(context.Background())
	}()

	r.SetReady()
	select {
	case err := <-got:
		if err != nil {
			t.Fatalf("Await returned %v after SetReady", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Await did not return after SetReady")
	}
}

func TestReadinessAwaitCancelled(t *testing.T) {
	r := NewReadiness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want context.Canceled", err)
	}
}

func TestReadinessAwaitObservesFailure(t *testing.T) {
	r := NewReadiness()
	cause := errors.New("onnx init")

	go r.SetFailed(cause)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Await(ctx); !errors.Is(err, cause) {
		t.Fatalf("err = %v; want init failure", err)
	}
}
