package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/psds-microservice/ticket-desk/internal/errs"
	"golang.org/x/crypto/bcrypt"
)

// memLimiter is an in-process Limiter with the same counting rules as RedisLimiter.
type memLimiter struct {
	max      int
	failures map[string]int
	err      error
}

func newMemLimiter(max int) *memLimiter {
	return &memLimiter{max: max, failures: map[string]int{}}
}

func (l *memLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return l.failures[key] < l.max, nil
}

func (l *memLimiter) Fail(_ context.Context, key string) error {
	l.failures[key]++
	return l.err
}

func (l *memLimiter) Reset(_ context.Context, key string) error {
	delete(l.failures, key)
	return l.err
}

func mustGate(t *testing.T, secret string, limiter Limiter) *Gate {
	t.Helper()
	hash, err := HashSecret(secret, bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewGate(hash, limiter)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestGateCheck(t *testing.T) {
	t.Parallel()
	g := mustGate(t, "admin123", nil)
	ctx := context.Background()

	if !g.Enabled() {
		t.Fatal("gate with a hash must be enabled")
	}
	if err := g.Check(ctx, "admin123"); err != nil {
		t.Errorf("correct secret rejected: %v", err)
	}
	for _, bad := range []string{"", "admin", "ADMIN123"} {
		if err := g.Check(ctx, bad); !errors.Is(err, errs.ErrAuth) {
			t.Errorf("Check(%q) = %v, want ErrAuth", bad, err)
		}
	}
}

func TestGateWithoutHashRejectsEverything(t *testing.T) {
	t.Parallel()
	g, err := NewGate("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.Enabled() {
		t.Error("gate without hash must be disabled")
	}
	if err := g.Check(context.Background(), ""); !errors.Is(err, errs.ErrAuth) {
		t.Errorf("expected ErrAuth, got %v", err)
	}
	var nilGate *Gate
	if nilGate.Enabled() {
		t.Error("nil gate must be disabled")
	}
}

func TestNewGateRejectsMalformedHash(t *testing.T) {
	t.Parallel()
	if _, err := NewGate("admin123", nil); err == nil {
		t.Error("plaintext passed as hash should be rejected")
	}
}

func TestGateLockout(t *testing.T) {
	t.Parallel()
	lim := newMemLimiter(2)
	g := mustGate(t, "admin123", lim)
	alice := WithClientKey(context.Background(), "10.0.0.1")
	bob := WithClientKey(context.Background(), "10.0.0.2")

	for i := 0; i < 2; i++ {
		if err := g.Check(alice, "nope"); !errors.Is(err, errs.ErrAuth) {
			t.Fatalf("attempt %d: expected ErrAuth, got %v", i+1, err)
		}
	}
	if err := g.Check(alice, "admin123"); !errors.Is(err, errs.ErrRateLimited) {
		t.Errorf("locked client: expected ErrRateLimited, got %v", err)
	}
	if err := g.Check(bob, "admin123"); err != nil {
		t.Errorf("other client should pass: %v", err)
	}
}

func TestGateSuccessResetsFailures(t *testing.T) {
	t.Parallel()
	lim := newMemLimiter(3)
	g := mustGate(t, "admin123", lim)
	ctx := WithClientKey(context.Background(), "cli")

	_ = g.Check(ctx, "nope")
	if err := g.Check(ctx, "admin123"); err != nil {
		t.Fatal(err)
	}
	if n := lim.failures["cli"]; n != 0 {
		t.Errorf("failures after success = %d, want 0", n)
	}
}

func TestGateIgnoresLimiterOutage(t *testing.T) {
	t.Parallel()
	lim := newMemLimiter(1)
	lim.err = errors.New("connection refused")
	g := mustGate(t, "admin123", lim)

	if err := g.Check(context.Background(), "admin123"); err != nil {
		t.Errorf("limiter outage must not block a correct secret: %v", err)
	}
}

func TestClientKeyDefault(t *testing.T) {
	t.Parallel()
	if got := ClientKey(context.Background()); got != "local" {
		t.Errorf("ClientKey = %q, want local", got)
	}
	if got := ClientKey(WithClientKey(context.Background(), "1.2.3.4")); got != "1.2.3.4" {
		t.Errorf("ClientKey = %q", got)
	}
}

func TestNewRedisLimiterNilClient(t *testing.T) {
	t.Parallel()
	if NewRedisLimiter(nil, 5, 0) != nil {
		t.Error("nil redis client should yield a nil limiter")
	}
}
