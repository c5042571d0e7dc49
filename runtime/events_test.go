package runtime

import (
	"context"
	"testing"
	"time"
)

func TestEventQueuePushConsumeClose(t *testing.T) {
	q := newEventQueue()
	q.push(Event{Log: "first"})
	q.push(Event{Log: "second"})
	q.close()

	ctx := context.Background()
	ev, ok, err := q.consume(ctx, 0)
	if err != nil || !ok || ev.Log != "first" {
		t.Fatalf("consume(0) = %+v, %v, %v", ev, ok, err)
	}
	ev, ok, err = q.consume(ctx, 1)
	if err != nil || !ok || ev.Log != "second" {
		t.Fatalf("consume(1) = %+v, %v, %v", ev, ok, err)
	}
	_, ok, err = q.consume(ctx, 2)
	if err != nil || ok {
		t.Fatalf("consume(2) after close should report drained, got ok=%v err=%v", ok, err)
	}
}

func TestEventQueuePushAfterClose(t *testing.T) {
	q := newEventQueue()
	q.close()
	q.push(Event{Log: "dropped"})

	_, ok, err := q.consume(context.Background(), 0)
	if err != nil || ok {
		t.Fatalf("expected drained queue after push-after-close, got ok=%v err=%v", ok, err)
	}
}

func TestEventQueueConsumeBlocksUntilPush(t *testing.T) {
	q := newEventQueue()
	done := make(chan Event, 1)
	go func() {
		ev, ok, err := q.consume(context.Background(), 0)
		if err == nil && ok {
			done <- ev
		}
	}()

	select {
	case <-done:
		t.Fatal("consume returned before any item was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	q.push(Event{Log: "late"})
	select {
	case ev := <-done:
		if ev.Log != "late" {
			t.Fatalf("got %+v, want Log=late", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("consume did not unblock after push")
	}
}

func TestEventQueueConsumeRespectsCancellation(t *testing.T) {
	q := newEventQueue()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, _, err := q.consume(ctx, 0)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected context.Canceled, got nil")
		}
	case <-time.After(time.Second):
		t.Fatal("consume did not return after context cancellation")
	}
}
