package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || got != "ok" || calls != 1 {
		t.Fatalf("got=%q err=%v calls=%d", got, err, calls)
	}
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", newTransportError("x", KindServer, errors.New("503"))
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("got=%q err=%v", got, err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context) (string, error) {
		calls++
		return "", newTransportError("x", KindAuth, errors.New("401"))
	})
	if err == nil || calls != 1 {
		t.Fatalf("err=%v calls=%d, want 1 call", err, calls)
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(2), func(ctx context.Context) (string, error) {
		calls++
		return "", newTransportError("x", KindRateLimit, errors.New("429"))
	})
	var te *TransportError
	if !errors.As(err, &te) || te.Kind != KindRateLimit {
		t.Fatalf("err = %v", err)
	}
	if calls != 3 { // initial attempt plus two retries
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := fastPolicy(3)
	// Force the wait path. MaxDelay must rise too: Delay caps at MaxDelay.
	policy.BaseDelay = time.Hour
	policy.MaxDelay = time.Hour
	calls := 0
	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = Retry(ctx, policy, func(ctx context.Context) (string, error) {
			calls++
			return "", newTransportError("x", KindServer, errors.New("503"))
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done

	var te *TransportError
	if !errors.As(err, &te) || te.Kind != KindTimeout {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetryOnRetryCallback(t *testing.T) {
	policy := fastPolicy(2)
	var attempts []int
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		attempts = append(attempts, attempt)
	}
	Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		return "", newTransportError("x", KindServer, errors.New("500"))
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("attempts = %v", attempts)
	}
}

func TestDelayGrowsAndCaps(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2.0}
	if d := p.Delay(0); d != time.Second {
		t.Fatalf("delay(0) = %v", d)
	}
	if d := p.Delay(1); d != 2*time.Second {
		t.Fatalf("delay(1) = %v", d)
	}
	if d := p.Delay(5); d != 3*time.Second {
		t.Fatalf("delay(5) = %v, want capped at 3s", d)
	}
}

func TestDelayJitterStaysInRange(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2.0, Jitter: true}
	for i := 0; i < 50; i++ {
		d := p.Delay(0)
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Fatalf("jittered delay %v outside [0.5s, 1.5s]", d)
		}
	}
}
