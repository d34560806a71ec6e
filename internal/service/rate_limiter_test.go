package service

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_CheckSubmissionRate_WithinLimit(t *testing.T) {
	rl := NewRateLimiter(10, 5)

	err := rl.CheckSubmissionRate(context.Background(), "client-1")
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestRateLimiter_CheckSubmissionRate_ExceedsBurst(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if err := rl.CheckSubmissionRate(context.Background(), "client-1"); err != nil {
			t.Errorf("expected no error for submission %d, got %v", i+1, err)
		}
	}

	err := rl.CheckSubmissionRate(context.Background(), "client-1")
	if err != ErrRateLimitExceeded {
		t.Errorf("expected rate limit error, got %v", err)
	}
}

func TestRateLimiter_CheckSubmissionRate_Refills(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(60, 1) // one token per second
	rl.now = func() time.Time { return now }

	rl.CheckSubmissionRate(context.Background(), "client-1")
	if err := rl.CheckSubmissionRate(context.Background(), "client-1"); err != ErrRateLimitExceeded {
		t.Errorf("expected rate limit error, got %v", err)
	}

	now = now.Add(2 * time.Second)
	if err := rl.CheckSubmissionRate(context.Background(), "client-1"); err != nil {
		t.Errorf("expected no error after refill, got %v", err)
	}
}

func TestRateLimiter_MultipleClients(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	if err := rl.CheckSubmissionRate(context.Background(), "client-1"); err != nil {
		t.Errorf("expected no error for client-1, got %v", err)
	}
	if err := rl.CheckSubmissionRate(context.Background(), "client-2"); err != nil {
		t.Errorf("expected no error for client-2, got %v", err)
	}
	if err := rl.CheckSubmissionRate(context.Background(), "client-1"); err != ErrRateLimitExceeded {
		t.Errorf("expected rate limit error for client-1, got %v", err)
	}
}

func TestRateLimiter_Prune(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(10, 5)
	rl.now = func() time.Time { return now }

	rl.CheckSubmissionRate(context.Background(), "old")
	now = now.Add(2 * time.Hour)
	rl.CheckSubmissionRate(context.Background(), "fresh")

	if dropped := rl.Prune(time.Hour); dropped != 1 {
		t.Errorf("expected 1 client pruned, got %d", dropped)
	}
	if rl.Clients() != 1 {
		t.Errorf("expected 1 client left, got %d", rl.Clients())
	}
}

func TestRateLimiter_CanceledContext(t *testing.T) {
	rl := NewRateLimiter(10, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rl.CheckSubmissionRate(ctx, "client-1"); err == nil {
		t.Error("expected error for canceled context")
	}
}
