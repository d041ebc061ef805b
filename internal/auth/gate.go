// Package auth guards destructive ticket operations behind an admin secret.
package auth

import (
	"context"
	"fmt"
	"log"

	"github.com/psds-microservice/ticket-desk/internal/errs"
	"golang.org/x/crypto/bcrypt"
)

// Limiter counts failed admin attempts per client key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// Gate compares a supplied secret with a bcrypt hash of the admin secret.
// A Gate without a hash rejects every secret, which disables deletion.
type Gate struct {
	hash    []byte
	limiter Limiter
}

// NewGate returns a gate for the given bcrypt hash. limiter may be nil.
func NewGate(hash string, limiter Limiter) (*Gate, error) {
	if hash == "" {
		return &Gate{limiter: limiter}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("admin secret hash: %w", err)
	}
	return &Gate{hash: []byte(hash), limiter: limiter}, nil
}

// DefaultCost is the bcrypt cost used when hashing ADMIN_SECRET at start-up.
const DefaultCost = bcrypt.DefaultCost

// HashSecret returns a bcrypt hash suitable for ADMIN_SECRET_HASH.
func HashSecret(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (g *Gate) Enabled() bool { return g != nil && len(g.hash) > 0 }

// Check returns nil when secret matches. Failures are errs.ErrAuth, or
// errs.ErrRateLimited once the limiter has locked the client out.
func (g *Gate) Check(ctx context.Context, secret string) error {
	if !g.Enabled() {
		return fmt.Errorf("%w: no admin secret configured", errs.ErrAuth)
	}
	key := ClientKey(ctx)
	if g.limiter != nil {
		ok, err := g.limiter.Allow(ctx, key)
		if err != nil {
			log.Printf("auth: limiter unavailable: %v", err)
		} else if !ok {
			return errs.ErrRateLimited
		}
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(secret)); err != nil {
		if g.limiter != nil {
			if err := g.limiter.Fail(ctx, key); err != nil {
				log.Printf("auth: record failed attempt: %v", err)
			}
		}
		return errs.ErrAuth
	}
	if g.limiter != nil {
		if err := g.limiter.Reset(ctx, key); err != nil {
			log.Printf("auth: reset attempts: %v", err)
		}
	}
	return nil
}

type clientKeyCtx struct{}

// WithClientKey tags ctx with the caller identity used for attempt counting.
func WithClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, clientKeyCtx{}, key)
}

// ClientKey returns the caller identity, "local" when none was set.
func ClientKey(ctx context.Context) string {
	if v, ok := ctx.Value(clientKeyCtx{}).(string); ok && v != "" {
		return v
	}
	return "local"
}
