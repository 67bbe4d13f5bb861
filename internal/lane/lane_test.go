package lane

import (
	"context"
	"testing"
	"time"
)

func TestCallRunsInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := New()
	go l.Run(ctx)

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		if err := l.Call(func() error {
			order = append(order, i)
			return nil
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("expected in-order execution, got %v", order)
		}
	}
}

func TestCallValueReturnsResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := New()
	go l.Run(ctx)

	got, err := CallValue(l, func() (string, error) {
		return "hello", nil
	})
	if err != nil || got != "hello" {
		t.Fatalf("got (%q, %v)", got, err)
	}
}

func TestPostIsAsynchronous(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := New()
	go l.Run(ctx)

	done := make(chan struct{})
	l.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected posted function to run")
	}
}

func TestCloseDrainsAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := New()
	go l.Run(ctx)

	var ran bool
	l.Post(func() { ran = true })
	l.Close()
	if !ran {
		t.Fatalf("expected posted task to run before Close returns")
	}
}
