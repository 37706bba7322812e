package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisGuardForTest(t *testing.T, policy CooldownPolicy) (*miniredis.Miniredis, *RedisCooldownGuard) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		m.Close()
	})
	return m, NewRedisCooldownGuard(client, "cooldown_test", policy)
}

func TestRedisCooldownGuardFreeAttemptsThenDelay(t *testing.T) {
	_, guard := newRedisGuardForTest(t, CooldownPolicy{
		FreeAttempts: 2,
		BaseDelay:    100 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     time.Second,
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
	if delay != 100*time.Millisecond {
		t.Fatalf("expected base delay after free attempts, got %v", delay)
	}
}

func TestRedisCooldownGuardExponentialAndCapped(t *testing.T) {
	_, guard := newRedisGuardForTest(t, CooldownPolicy{
		FreeAttempts: 0,
		BaseDelay:    100 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     400 * time.Millisecond,
		ResetWindow:  time.Minute,
	})
	ctx := context.Background()

	r1, err := guard.RegisterFailure(ctx, CooldownScopeLogin, "a@example.com", "10.0.0.1")
	if err != nil {
		t.Fatalf("first failure: %v", err)
	}
	r2, err := guard.RegisterFailure(ctx, CooldownScopeLogin, "a@example.com", "10.0.0.1")
	if err != nil {
		t.Fatalf("second failure: %v", err)
	}
	if r2 <= r1 {
		t.Fatalf("expected increasing cooldown, got r1=%v r2=%v", r1, r2)
	}
	for i := 0; i < 5; i++ {
		if _, err := guard.RegisterFailure(ctx, CooldownScopeLogin, "a@example.com", "10.0.0.1"); err != nil {
			t.Fatalf("failure #%d: %v", i+3, err)
		}
	}
	capped, err := guard.RegisterFailure(ctx, CooldownScopeLogin, "a@example.com", "10.0.0.1")
	if err != nil {
		t.Fatalf("capped failure: %v", err)
	}
	if capped != 400*time.Millisecond {
		t.Fatalf("expected capped delay 400ms, got %v", capped)
	}
}

func TestRedisCooldownGuardCheckReportsRemainingWait(t *testing.T) {
	_, guard := newRedisGuardForTest(t, CooldownPolicy{
		FreeAttempts: 0,
		BaseDelay:    10 * time.Second,
		Multiplier:   2,
		MaxDelay:     time.Minute,
		ResetWindow:  time.Hour,
	})
	ctx := context.Background()

	if retry, err := guard.Check(ctx, CooldownScopeLogin, "b@example.com", "10.0.0.2"); err != nil || retry != 0 {
		t.Fatalf("expected no cooldown initially, got retry=%v err=%v", retry, err)
	}
	if _, err := guard.RegisterFailure(ctx, CooldownScopeLogin, "b@example.com", "10.0.0.2"); err != nil {
		t.Fatalf("register failure: %v", err)
	}
	retry, err := guard.Check(ctx, CooldownScopeLogin, "b@example.com", "10.0.0.2")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if retry <= 0 || retry > 10*time.Second {
		t.Fatalf("expected remaining wait within the base delay, got %v", retry)
	}
}

func TestRedisCooldownGuardResetClearsBothDimensions(t *testing.T) {
	m, guard := newRedisGuardForTest(t, CooldownPolicy{
		FreeAttempts: 0,
		BaseDelay:    10 * time.Second,
		Multiplier:   2,
		MaxDelay:     time.Minute,
		ResetWindow:  time.Hour,
	})
	ctx := context.Background()

	if _, err := guard.RegisterFailure(ctx, CooldownScopeLogin, "c@example.com", "10.0.0.3"); err != nil {
		t.Fatalf("register failure: %v", err)
	}
	if len(m.Keys()) != 2 {
		t.Fatalf("expected one key per dimension, got %v", m.Keys())
	}
	if err := guard.Reset(ctx, CooldownScopeLogin, "c@example.com", "10.0.0.3"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(m.Keys()) != 0 {
		t.Fatalf("expected state keys deleted, got %v", m.Keys())
	}
	if retry, err := guard.Check(ctx, CooldownScopeLogin, "c@example.com", "10.0.0.3"); err != nil || retry != 0 {
		t.Fatalf("expected cooldown cleared, got retry=%v err=%v", retry, err)
	}
}

func TestRedisCooldownGuardDimensionAndScopeIsolation(t *testing.T) {
	_, guard := newRedisGuardForTest(t, CooldownPolicy{
		FreeAttempts: 0,
		BaseDelay:    10 * time.Second,
		Multiplier:   2,
		MaxDelay:     time.Minute,
		ResetWindow:  time.Hour,
	})
	ctx := context.Background()

	if _, err := guard.RegisterFailure(ctx, CooldownScopeLogin, "d@example.com", "10.0.0.4"); err != nil {
		t.Fatalf("register failure: %v", err)
	}

	if retry, _ := guard.Check(ctx, CooldownScopeLogin, "d@example.com", "10.99.99.99"); retry <= 0 {
		t.Fatal("expected identity dimension to trigger cooldown")
	}
	if retry, _ := guard.Check(ctx, CooldownScopeLogin, "z@example.com", "10.0.0.4"); retry <= 0 {
		t.Fatal("expected ip dimension to trigger cooldown")
	}
	if retry, _ := guard.Check(ctx, CooldownScopeLogin, "z@example.com", "10.99.99.99"); retry != 0 {
		t.Fatalf("expected unrelated identity+ip unaffected, got %v", retry)
	}
	if retry, _ := guard.Check(ctx, CooldownScopeRecovery, "d@example.com", "10.0.0.4"); retry != 0 {
		t.Fatalf("expected recovery scope unaffected by login failures, got %v", retry)
	}
}

func TestRedisCooldownGuardResetWindowRestartsCounting(t *testing.T) {
	m, guard := newRedisGuardForTest(t, CooldownPolicy{
		FreeAttempts: 0,
		BaseDelay:    100 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     time.Second,
		ResetWindow:  50 * time.Millisecond,
	})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := guard.RegisterFailure(ctx, CooldownScopeLogin, "e@example.com", "10.0.0.5"); err != nil {
			t.Fatalf("failure #%d: %v", i+1, err)
		}
	}

	// The miniredis clock must move too, or PEXPIRE-based state never ages.
	m.FastForward(time.Second)
	time.Sleep(60 * time.Millisecond)

	delay, err := guard.RegisterFailure(ctx, CooldownScopeLogin, "e@example.com", "10.0.0.5")
	if err != nil {
		t.Fatalf("post-window failure: %v", err)
	}
	if delay != 100*time.Millisecond {
		t.Fatalf("expected counter restarted at base delay, got %v", delay)
	}
}
