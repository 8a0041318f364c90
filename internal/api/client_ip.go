package api

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

const unknownClient = "unknown"

// ClientIPResolver picks the address rate limits are keyed on. Forwarding
// headers are honoured only when the direct peer is a trusted proxy.
type ClientIPResolver struct {
	trusted []netip.Prefix
}

// NewClientIPResolver accepts CIDRs and bare addresses; a bare address
// trusts exactly that host.
func NewClientIPResolver(trustedProxies []string) (*ClientIPResolver, error) {
	resolver := &ClientIPResolver{}

	for _, raw := range trustedProxies {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}

		if addr, err := netip.ParseAddr(value); err == nil {
			addr = addr.Unmap()
			resolver.trusted = append(resolver.trusted, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}

		prefix, err := netip.ParsePrefix(value)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", value, err)
		}
		resolver.trusted = append(resolver.trusted, prefix.Masked())
	}

	return resolver, nil
}

func (r *ClientIPResolver) Resolve(req *http.Request) string {
	peer, ok := parseAddr(req.RemoteAddr)
	if !ok {
		return unknownClient
	}
	if !r.trusts(peer) {
		return peer.String()
	}

	for _, hop := range strings.Split(req.Header.Get("X-Forwarded-For"), ",") {
		if addr, ok := parseAddr(hop); ok {
			return addr.String()
		}
	}
	if addr, ok := parseAddr(req.Header.Get("X-Real-IP")); ok {
		return addr.String()
	}

	return peer.String()
}

// Key adapts Resolve to the rate limiter's key function signature.
func (r *ClientIPResolver) Key(req *http.Request) (string, error) {
	return r.Resolve(req), nil
}

func (r *ClientIPResolver) trusts(addr netip.Addr) bool {
	for _, prefix := range r.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// parseAddr accepts "ip", "ip:port", "[ipv6]:port" and quoted forms.
func parseAddr(value string) (netip.Addr, bool) {
	value = strings.Trim(strings.TrimSpace(value), `"`)
	if value == "" {
		return netip.Addr{}, false
	}

	if addr, err := netip.ParseAddr(value); err == nil {
		return addr.Unmap(), true
	}

	host, _, err := net.SplitHostPort(value)
	if err != nil {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
