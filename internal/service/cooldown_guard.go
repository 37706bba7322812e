package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// CooldownScope names the workflow a cooldown protects. Login failures and
// recovery requests are throttled independently.
type CooldownScope string

const (
	CooldownScopeLogin    CooldownScope = "login"
	CooldownScopeRecovery CooldownScope = "recovery"
)

// CooldownPolicy drives the exponential backoff: the first FreeAttempts
// failures cost nothing, then each failure doubles (Multiplier) the delay
// starting from BaseDelay, capped at MaxDelay. Counters reset after
// ResetWindow of quiet.
type CooldownPolicy struct {
	FreeAttempts int
	BaseDelay    time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	ResetWindow  time.Duration
}

// CooldownGuard throttles repeated failures keyed by both the claimed
// identity and the caller IP. It is advisory abuse protection layered in
// front of the per-credential lockout.
type CooldownGuard interface {
	Check(ctx context.Context, scope CooldownScope, identity, ip string) (time.Duration, error)
	RegisterFailure(ctx context.Context, scope CooldownScope, identity, ip string) (time.Duration, error)
	Reset(ctx context.Context, scope CooldownScope, identity, ip string) error
}

type NoopCooldownGuard struct{}

func NewNoopCooldownGuard() *NoopCooldownGuard { return &NoopCooldownGuard{} }

func (g *NoopCooldownGuard) Check(context.Context, CooldownScope, string, string) (time.Duration, error) {
	return 0, nil
}

func (g *NoopCooldownGuard) RegisterFailure(context.Context, CooldownScope, string, string) (time.Duration, error) {
	return 0, nil
}

func (g *NoopCooldownGuard) Reset(context.Context, CooldownScope, string, string) error {
	return nil
}

type cooldownEntry struct {
	Failures      int
	LastFailureAt time.Time
	CooldownUntil time.Time
}

type InMemoryCooldownGuard struct {
	mu     sync.Mutex
	policy CooldownPolicy
	data   map[string]cooldownEntry
}

func NewInMemoryCooldownGuard(policy CooldownPolicy) *InMemoryCooldownGuard {
	return &InMemoryCooldownGuard{
		policy: normalizeCooldownPolicy(policy),
		data:   make(map[string]cooldownEntry),
	}
}

func (g *InMemoryCooldownGuard) Check(_ context.Context, scope CooldownScope, identity, ip string) (time.Duration, error) {
	now := time.Now().UTC()
	g.mu.Lock()
	defer g.mu.Unlock()

	identityDelay := g.activeCooldownLocked(now, cooldownKey(scope, "id", normalizeCooldownIdentity(identity)))
	ipDelay := g.activeCooldownLocked(now, cooldownKey(scope, "ip", normalizeCooldownIP(ip)))
	return max(identityDelay, ipDelay), nil
}

func (g *InMemoryCooldownGuard) RegisterFailure(_ context.Context, scope CooldownScope, identity, ip string) (time.Duration, error) {
	now := time.Now().UTC()
	g.mu.Lock()
	defer g.mu.Unlock()

	identityDelay := g.bumpLocked(now, cooldownKey(scope, "id", normalizeCooldownIdentity(identity)))
	ipDelay := g.bumpLocked(now, cooldownKey(scope, "ip", normalizeCooldownIP(ip)))
	return max(identityDelay, ipDelay), nil
}

func (g *InMemoryCooldownGuard) Reset(_ context.Context, scope CooldownScope, identity, ip string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.data, cooldownKey(scope, "id", normalizeCooldownIdentity(identity)))
	delete(g.data, cooldownKey(scope, "ip", normalizeCooldownIP(ip)))
	return nil
}

func (g *InMemoryCooldownGuard) bumpLocked(now time.Time, key string) time.Duration {
	entry := g.data[key]
	if entry.LastFailureAt.IsZero() || now.Sub(entry.LastFailureAt) > g.policy.ResetWindow {
		entry.Failures = 0
	}
	entry.Failures++
	entry.LastFailureAt = now
	delay := g.computeDelay(entry.Failures)
	entry.CooldownUntil = now.Add(delay)
	g.data[key] = entry
	return delay
}

func (g *InMemoryCooldownGuard) activeCooldownLocked(now time.Time, key string) time.Duration {
	entry, ok := g.data[key]
	if !ok {
		return 0
	}
	if now.Sub(entry.LastFailureAt) > g.policy.ResetWindow {
		delete(g.data, key)
		return 0
	}
	if now.After(entry.CooldownUntil) {
		return 0
	}
	return entry.CooldownUntil.Sub(now)
}

func (g *InMemoryCooldownGuard) computeDelay(failures int) time.Duration {
	if failures <= g.policy.FreeAttempts {
		return 0
	}
	power := math.Pow(g.policy.Multiplier, float64(failures-g.policy.FreeAttempts-1))
	delay := time.Duration(float64(g.policy.BaseDelay) * power)
	if delay > g.policy.MaxDelay {
		return g.policy.MaxDelay
	}
	return delay
}

func cooldownKey(scope CooldownScope, dim, value string) string {
	return fmt.Sprintf("%s:%s:%s", scope, dim, value)
}

func normalizeCooldownIdentity(identity string) string {
	v := strings.TrimSpace(strings.ToLower(identity))
	if v == "" {
		return "anonymous"
	}
	return v
}

func normalizeCooldownIP(ip string) string {
	v := strings.TrimSpace(strings.ToLower(ip))
	if v == "" {
		return "unknown"
	}
	return v
}

func normalizeCooldownPolicy(policy CooldownPolicy) CooldownPolicy {
	if policy.FreeAttempts < 0 {
		policy.FreeAttempts = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 2 * time.Second
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 2
	}
	if policy.MaxDelay < policy.BaseDelay {
		policy.MaxDelay = 5 * time.Minute
	}
	if policy.ResetWindow <= 0 {
		policy.ResetWindow = 30 * time.Minute
	}
	return policy
}
