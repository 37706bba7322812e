package service

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryCooldownGuardFreeAttempts(t *testing.T) {
	guard := NewInMemoryCooldownGuard(CooldownPolicy{
		FreeAttempts: 2,
		BaseDelay:    10 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     100 * time.Millisecond,
		ResetWindow:  time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		delay, err := guard.RegisterFailure(ctx, CooldownScopeLogin, "a@example.com", "10.0.0.1")
		if err != nil {
			t.Fatalf("register failure #%d: %v", i+1, err)
		}
		if delay != 0 {
			t.Fatalf("expected free attempt #%d, got delay %v", i+1, delay)
		}
	}
	delay, err := guard.RegisterFailure(ctx, CooldownScopeLogin, "a@example.com", "10.0.0.1")
	if err != nil {
		t.Fatalf("register failure #3: %v", err)
	}
	if delay != 10*time.Millisecond {
		t.Fatalf("expected base delay after free attempts, got %v", delay)
	}
}

func TestInMemoryCooldownGuardExponentialCooldown(t *testing.T) {
	guard := NewInMemoryCooldownGuard(CooldownPolicy{
		FreeAttempts: 0,
		BaseDelay:    10 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     40 * time.Millisecond,
		ResetWindow:  time.Second,
	})
	ctx := context.Background()

	if retry, err := guard.Check(ctx, CooldownScopeLogin, "a@example.com", "10.0.0.1"); err != nil || retry != 0 {
		t.Fatalf("expected no cooldown initially, got retry=%v err=%v", retry, err)
	}
	r1, _ := guard.RegisterFailure(ctx, CooldownScopeLogin, "a@example.com", "10.0.0.1")
	r2, _ := guard.RegisterFailure(ctx, CooldownScopeLogin, "a@example.com", "10.0.0.1")
	if r2 <= r1 {
		t.Fatalf("expected increasing cooldown, got r1=%v r2=%v", r1, r2)
	}
	// Past the cap every further failure returns MaxDelay.
	for i := 0; i < 5; i++ {
		_, _ = guard.RegisterFailure(ctx, CooldownScopeLogin, "a@example.com", "10.0.0.1")
	}
	capped, _ := guard.RegisterFailure(ctx, CooldownScopeLogin, "a@example.com", "10.0.0.1")
	if capped != 40*time.Millisecond {
		t.Fatalf("expected capped delay 40ms, got %v", capped)
	}
}

func TestInMemoryCooldownGuardResetClearsCooldown(t *testing.T) {
	guard := NewInMemoryCooldownGuard(CooldownPolicy{
		FreeAttempts: 0,
		BaseDelay:    time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
		ResetWindow:  time.Minute,
	})
	ctx := context.Background()
	_, _ = guard.RegisterFailure(ctx, CooldownScopeLogin, "b@example.com", "10.0.0.2")
	if retry, _ := guard.Check(ctx, CooldownScopeLogin, "b@example.com", "10.0.0.2"); retry <= 0 {
		t.Fatal("expected active cooldown before reset")
	}
	if err := guard.Reset(ctx, CooldownScopeLogin, "b@example.com", "10.0.0.2"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if retry, _ := guard.Check(ctx, CooldownScopeLogin, "b@example.com", "10.0.0.2"); retry != 0 {
		t.Fatalf("expected cooldown to be cleared, got %v", retry)
	}
}

func TestInMemoryCooldownGuardDimensionIsolation(t *testing.T) {
	guard := NewInMemoryCooldownGuard(CooldownPolicy{
		FreeAttempts: 0,
		BaseDelay:    time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
		ResetWindow:  time.Minute,
	})
	ctx := context.Background()
	_, _ = guard.RegisterFailure(ctx, CooldownScopeLogin, "c@example.com", "10.0.0.3")

	if retry, _ := guard.Check(ctx, CooldownScopeLogin, "c@example.com", "10.0.0.9"); retry <= 0 {
		t.Fatal("expected identity dimension to trigger cooldown")
	}
	if retry, _ := guard.Check(ctx, CooldownScopeLogin, "z@example.com", "10.0.0.3"); retry <= 0 {
		t.Fatal("expected ip dimension to trigger cooldown")
	}
	if retry, _ := guard.Check(ctx, CooldownScopeLogin, "z@example.com", "10.0.0.9"); retry != 0 {
		t.Fatalf("expected unrelated identity+ip to be unaffected, got %v", retry)
	}
}

func TestInMemoryCooldownGuardScopeIsolation(t *testing.T) {
	guard := NewInMemoryCooldownGuard(CooldownPolicy{
		FreeAttempts: 0,
		BaseDelay:    time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
		ResetWindow:  time.Minute,
	})
	ctx := context.Background()
	_, _ = guard.RegisterFailure(ctx, CooldownScopeLogin, "d@example.com", "10.0.0.4")

	if retry, _ := guard.Check(ctx, CooldownScopeRecovery, "d@example.com", "10.0.0.4"); retry != 0 {
		t.Fatalf("expected recovery scope unaffected by login failures, got %v", retry)
	}
}

func TestNormalizeCooldownPolicyDefaults(t *testing.T) {
	p := normalizeCooldownPolicy(CooldownPolicy{FreeAttempts: -1})
	if p.FreeAttempts != 0 {
		t.Fatalf("expected FreeAttempts clamped to 0, got %d", p.FreeAttempts)
	}
	if p.BaseDelay != 2*time.Second || p.Multiplier != 2 || p.MaxDelay != 5*time.Minute || p.ResetWindow != 30*time.Minute {
		t.Fatalf("unexpected defaults %+v", p)
	}
}
