package admission

import (
	"net"
	"sync/atomic"
)

// IPFilterResult is the outcome of a single IPFilter.Check call.
type IPFilterResult int

const (
	Allowed IPFilterResult = iota
	Denied
	Invalid
)

// IPFilterStats is a point-in-time snapshot of an IPFilter's check counts.
type IPFilterStats struct {
	TotalChecks     int64
	AllowedCount    int64
	DeniedCount     int64
	WhitelistEntries int
}

// IPFilter implements the IP allow-list admission check: entries are
// parsed once at startup into CIDR ranges; IPv4 and IPv6 are independent
// families, each checked with net.IPNet.Contains.
type IPFilter struct {
	enabled bool
	nets    []*net.IPNet

	total int64
	allow int64
	deny  int64
}

// NewIPFilter parses entries (single IPs or CIDR ranges) into the filter.
// A malformed entry is a config error, returned immediately.
func NewIPFilter(enabled bool, entries []string) (*IPFilter, error) {
	f := &IPFilter{enabled: enabled}
	for _, e := range entries {
		n, err := parseEntry(e)
		if err != nil {
			return nil, err
		}
		f.nets = append(f.nets, n)
	}
	return f, nil
}

func parseEntry(e string) (*net.IPNet, error) {
	if _, n, err := net.ParseCIDR(e); err == nil {
		return n, nil
	}
	ip := net.ParseIP(e)
	if ip == nil {
		return nil, &net.ParseError{Type: "IP address or CIDR", Text: e}
	}
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

// Check returns ALLOWED iff the filter is disabled, the list is empty, or
// some entry contains clientIP; DENIED otherwise; INVALID if clientIP
// cannot be parsed.
func (f *IPFilter) Check(clientIP string) IPFilterResult {
	atomic.AddInt64(&f.total, 1)
	if !f.enabled || len(f.nets) == 0 {
		atomic.AddInt64(&f.allow, 1)
		return Allowed
	}
	ip := net.ParseIP(clientIP)
	if ip == nil {
		return Invalid
	}
	for _, n := range f.nets {
		if n.Contains(ip) {
			atomic.AddInt64(&f.allow, 1)
			return Allowed
		}
	}
	atomic.AddInt64(&f.deny, 1)
	return Denied
}

func (f *IPFilter) StatsSnapshot() any {
	return IPFilterStats{
		TotalChecks:      atomic.LoadInt64(&f.total),
		AllowedCount:     atomic.LoadInt64(&f.allow),
		DeniedCount:      atomic.LoadInt64(&f.deny),
		WhitelistEntries: len(f.nets),
	}
}
