package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestStream_FlushesOnSemanticBoundary(t *testing.T) {
	s := NewStream(8)
	s.Push("Hello")
	s.Push(" world.")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	item, err := s.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if item.Text != "Hello world." {
		t.Fatalf("Text = %q, want %q", item.Text, "Hello world.")
	}

	s.Close()
	final, err := drainUntilTerminal(ctx, s)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if !final.Terminal {
		t.Fatal("expected a terminal item after Close")
	}
}

func TestStream_FlushesOnTimerWithoutBoundary(t *testing.T) {
	s := NewStream(8)
	s.Push("no boundary here")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	item, err := s.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if item.Text != "no boundary here" {
		t.Fatalf("Text = %q", item.Text)
	}
}

func TestStream_StatsReportTokensAndFlushes(t *testing.T) {
	s := NewStream(16)
	for i := 0; i < 20; i++ {
		s.Push("tok")
	}
	s.Push("tok.")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _ = s.Consume(ctx)

	stats := s.GetStats()
	if stats.TotalTokens < 20 {
		t.Fatalf("TotalTokens = %d, want >= 20", stats.TotalTokens)
	}
	if stats.TotalFlushes < 1 {
		t.Fatal("expected at least one flush recorded")
	}
}

func drainUntilTerminal(ctx context.Context, s *Stream) (Item, error) {
	for {
		item, err := s.Consume(ctx)
		if err != nil || item.Terminal {
			return item, err
		}
	}
}
