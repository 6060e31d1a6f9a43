package resilience

import (
	"testing"
	"time"
)

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})

	if rl.config.RequestsPerWindow != 60 {
		t.Errorf("RequestsPerWindow = %d, want 60", rl.config.RequestsPerWindow)
	}
	if rl.config.Window != time.Minute {
		t.Errorf("Window = %v, want 1m", rl.config.Window)
	}
	if rl.config.MaxConcurrent != 16 {
		t.Errorf("MaxConcurrent = %d, want 16", rl.config.MaxConcurrent)
	}
}

func TestRateLimiter_AcquireRelease(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerWindow: 1000, Window: time.Second})

	d := rl.Acquire()
	if d.Decision == DecisionRejected {
		t.Fatalf("Acquire() = rejected, want granted")
	}

	status := rl.Status()
	if status.InFlight != 1 {
		t.Errorf("InFlight = %d, want 1", status.InFlight)
	}

	rl.Release()
	status = rl.Status()
	if status.InFlight != 0 {
		t.Errorf("InFlight after Release = %d, want 0", status.InFlight)
	}
}

func TestRateLimiter_RejectsAtConcurrencyCeiling(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerWindow: 1000,
		Window:            time.Second,
		MaxConcurrent:     2,
	})

	if d := rl.Acquire(); d.Decision == DecisionRejected {
		t.Fatalf("first Acquire() rejected")
	}
	if d := rl.Acquire(); d.Decision == DecisionRejected {
		t.Fatalf("second Acquire() rejected")
	}

	d := rl.Acquire()
	if d.Decision != DecisionRejected {
		t.Errorf("third Acquire() = %v, want rejected", d.Decision)
	}

	// A release frees a slot for the next acquire.
	rl.Release()
	if d := rl.Acquire(); d.Decision == DecisionRejected {
		t.Errorf("Acquire() after Release rejected, want granted")
	}
}

func TestRateLimiter_DelaysWhenBudgetPaced(t *testing.T) {
	// 2 requests per 100ms window: the burst absorbs the first two, the
	// third needs to wait for pacing.
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerWindow: 2,
		Window:            100 * time.Millisecond,
	})

	first := rl.Acquire()
	second := rl.Acquire()
	third := rl.Acquire()

	if first.Decision != DecisionAcquired {
		t.Errorf("first = %v, want acquired", first.Decision)
	}
	if second.Decision != DecisionAcquired {
		t.Errorf("second = %v, want acquired", second.Decision)
	}
	if third.Decision != DecisionDelayed {
		t.Errorf("third = %v, want delayed", third.Decision)
	}
	if third.Decision == DecisionDelayed && third.Wait <= 0 {
		t.Errorf("third.Wait = %v, want positive", third.Wait)
	}
}

func TestRateLimiter_ServerExhaustionExtendsWait(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerWindow: 1000,
		Window:            time.Minute,
	})

	rl.UpdateFromHeaders(ServerQuota{
		RemainingRequests: 0,
		RemainingTokens:   -1,
		ResetAfter:        200 * time.Millisecond,
	})

	d := rl.Acquire()
	if d.Decision != DecisionDelayed {
		t.Fatalf("Acquire() = %v, want delayed while server quota is exhausted", d.Decision)
	}
	if d.Wait <= 0 || d.Wait > 200*time.Millisecond {
		t.Errorf("Wait = %v, want in (0, 200ms]", d.Wait)
	}
}

func TestRateLimiter_ServerQuotaPrefersTighterNumber(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerWindow: 1000, Window: time.Minute})

	rl.UpdateFromHeaders(ServerQuota{RemainingRequests: 10, RemainingTokens: -1})
	rl.UpdateFromHeaders(ServerQuota{RemainingRequests: 50, RemainingTokens: -1})

	if got := rl.Status().RemainingRequests; got != 10 {
		t.Errorf("RemainingRequests = %d, want 10; looser report must not widen the budget", got)
	}

	rl.UpdateFromHeaders(ServerQuota{RemainingRequests: 3, RemainingTokens: -1})
	if got := rl.Status().RemainingRequests; got != 3 {
		t.Errorf("RemainingRequests = %d, want 3", got)
	}
}

func TestRateLimiter_TokenBudgetExhaustionDelays(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerWindow: 1000,
		TokensPerWindow:   100,
		Window:            200 * time.Millisecond,
	})

	rl.RecordTokens(100)

	d := rl.Acquire()
	if d.Decision != DecisionDelayed {
		t.Fatalf("Acquire() = %v, want delayed while token budget is spent", d.Decision)
	}
	rl.Release()

	// The budget refills when the window rolls.
	time.Sleep(250 * time.Millisecond)
	d = rl.Acquire()
	if d.Decision != DecisionAcquired {
		t.Errorf("Acquire() after window roll = %v, want acquired", d.Decision)
	}
}

func TestRateLimiter_RecordTokensNoopWhenUnmetered(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerWindow: 1000, Window: time.Second})

	rl.RecordTokens(1 << 30)

	d := rl.Acquire()
	if d.Decision != DecisionAcquired {
		t.Errorf("Acquire() = %v, want acquired; token accounting is disabled", d.Decision)
	}
}

func TestRateLimiter_StatusReportsTokenBudget(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerWindow: 1000,
		TokensPerWindow:   500,
		Window:            time.Minute,
	})

	rl.RecordTokens(120)

	status := rl.Status()
	if status.RemainingTokens != 380 {
		t.Errorf("RemainingTokens = %d, want 380", status.RemainingTokens)
	}
	if status.TokensPerWindow != 500 {
		t.Errorf("TokensPerWindow = %d, want 500", status.TokensPerWindow)
	}
	if status.RemainingRequests != -1 {
		t.Errorf("RemainingRequests = %d, want -1 before any server report", status.RemainingRequests)
	}
}
