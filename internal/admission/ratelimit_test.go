package admission

import (
	"net/http"
	"testing"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(true, 100, 60, 20)
	allowed := 0
	for i := 0; i < 120; i++ {
		if rl.Check("1.2.3.4").Allowed {
			allowed++
		}
	}
	if allowed != 120 {
		t.Fatalf("expected all 120 requests (limit+burst) allowed, got %d", allowed)
	}
	if rl.Check("1.2.3.4").Allowed {
		t.Fatal("expected the 121st request to be denied")
	}
}

func TestRateLimiterIndependentPerIP(t *testing.T) {
	rl := NewRateLimiter(true, 1, 60, 0)
	if !rl.Check("1.1.1.1").Allowed {
		t.Fatal("expected first request from 1.1.1.1 allowed")
	}
	if !rl.Check("2.2.2.2").Allowed {
		t.Fatal("expected first request from a different IP allowed independently")
	}
}

func TestRateLimiterDisabledAlwaysAllows(t *testing.T) {
	rl := NewRateLimiter(false, 1, 60, 0)
	for i := 0; i < 50; i++ {
		if !rl.Check("1.2.3.4").Allowed {
			t.Fatal("expected always-allow when disabled")
		}
	}
}

func TestExtractIPPrefersForwardedFor(t *testing.T) {
	hdr := make(http.Header)
	hdr.Set("X-Forwarded-For", "203.0.113.1, 10.0.0.1")
	got := ExtractIP(hdr, "10.0.0.5:1234")
	if got != "203.0.113.1" {
		t.Fatalf("got %q, want 203.0.113.1", got)
	}
}
