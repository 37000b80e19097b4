package admission

import (
	"net/http"
	"strconv"
	"strings"
)

// CORS implements the admission pipeline's CORS step: respond 204 to
// preflight with configured Access-Control-Allow-* headers, and echo/limit
// the Origin on any origin-bearing request.
type CORS struct {
	enabled bool
	origins map[string]bool
	allowAll bool
	methods string
	headers string
	maxAge  string
}

func NewCORS(enabled bool, origins, methods, headers []string, maxAge int) *CORS {
	c := &CORS{
		enabled: enabled,
		origins: make(map[string]bool, len(origins)),
		methods: strings.Join(methods, ", "),
		headers: strings.Join(headers, ", "),
		maxAge:  strconv.Itoa(maxAge),
	}
	for _, o := range origins {
		if o == "*" {
			c.allowAll = true
		}
		c.origins[o] = true
	}
	return c
}

// ApplyPreflight writes the 204 preflight response headers for an OPTIONS
// request and returns whether it handled the request (the router should
// respond 204 and stop routing when true).
func (c *CORS) ApplyPreflight(hdr http.Header, origin string) bool {
	if !c.enabled {
		return false
	}
	c.applyOrigin(hdr, origin)
	hdr.Set("Access-Control-Allow-Methods", c.methods)
	hdr.Set("Access-Control-Allow-Headers", c.headers)
	hdr.Set("Access-Control-Max-Age", c.maxAge)
	return true
}

// ApplyOrigin echoes/limits Origin on a normal (non-preflight) request.
func (c *CORS) ApplyOrigin(hdr http.Header, origin string) {
	if !c.enabled || origin == "" {
		return
	}
	c.applyOrigin(hdr, origin)
}

func (c *CORS) applyOrigin(hdr http.Header, origin string) {
	if c.allowAll {
		hdr.Set("Access-Control-Allow-Origin", "*")
		return
	}
	if c.origins[origin] {
		hdr.Set("Access-Control-Allow-Origin", origin)
		hdr.Set("Vary", "Origin")
	}
}
