package admission

import "testing"

func TestIPFilterAllowsConfiguredCIDR(t *testing.T) {
	f, err := NewIPFilter(true, []string{"10.0.0.0/8", "::1/128"})
	if err != nil {
		t.Fatalf("NewIPFilter: %v", err)
	}
	if f.Check("10.1.2.3") != Allowed {
		t.Fatal("expected 10.1.2.3 allowed")
	}
	if f.Check("192.168.1.1") != Denied {
		t.Fatal("expected 192.168.1.1 denied")
	}
	if f.Check("::1") != Allowed {
		t.Fatal("expected ::1 allowed")
	}
	if f.Check("fe80::1") != Denied {
		t.Fatal("expected fe80::1 denied (independent v6 family)")
	}
}

func TestIPFilterDisabledAllowsAll(t *testing.T) {
	f, err := NewIPFilter(false, nil)
	if err != nil {
		t.Fatalf("NewIPFilter: %v", err)
	}
	if f.Check("8.8.8.8") != Allowed {
		t.Fatal("expected allow-all when disabled")
	}
}

func TestIPFilterRejectsMalformedEntry(t *testing.T) {
	if _, err := NewIPFilter(true, []string{"not-an-ip"}); err == nil {
		t.Fatal("expected config error for malformed entry")
	}
}
