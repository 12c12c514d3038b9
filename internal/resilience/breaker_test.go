package resilience

import (
	"errors"
	"testing"
	"time"
)

var errRemote = errors.New("connection refused")

func testBreaker(maxFailures int) (*Breaker, *time.Time) {
	now := time.Now()
	b := NewBreaker("test", maxFailures, time.Second)
	b.now = func() time.Time { return now }
	return b, &now
}

func trip(b *Breaker, n int) {
	for range n {
		_ = b.Execute(func() error { return errRemote })
	}
}

func TestClosedPassesErrorsThrough(t *testing.T) {
	b, _ := testBreaker(3)
	if err := b.Execute(func() error { return errRemote }); !errors.Is(err, errRemote) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %s, want closed", b.State())
	}
}

func TestOpensAfterMaxFailures(t *testing.T) {
	b, _ := testBreaker(3)
	trip(b, 3)

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("expected rejection without call, got %v called=%v", err, called)
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open", b.State())
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b, _ := testBreaker(3)
	trip(b, 2)
	_ = b.Execute(func() error { return nil })
	trip(b, 2)

	if b.State() != StateClosed {
		t.Fatalf("state = %s, want closed", b.State())
	}
}

func TestHalfOpenProbeClosesOnSuccess(t *testing.T) {
	b, now := testBreaker(2)
	trip(b, 2)

	*now = now.Add(2 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %s, want half-open", b.State())
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %s, want closed", b.State())
	}
}

func TestHalfOpenProbeFailureReopens(t *testing.T) {
	b, now := testBreaker(2)
	trip(b, 2)

	*now = now.Add(2 * time.Second)
	_ = b.Execute(func() error { return errRemote })

	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open", b.State())
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after reopen, got %v", err)
	}
}

func TestHalfOpenAllowsSingleProbe(t *testing.T) {
	b, now := testBreaker(1)
	trip(b, 1)
	*now = now.Add(2 * time.Second)

	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Execute(func() error { <-release; return nil })
	}()

	// Wait for the probe to be in flight.
	for {
		b.mu.Lock()
		probing := b.probing
		b.mu.Unlock()
		if probing {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("second call during probe: got %v, want ErrCircuitOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %s, want closed", b.State())
	}
}
