package api

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/httprate"
)

// proxyTrust lists the peers allowed to report the client address in
// forwarding headers. Rate limits are keyed by the address it resolves.
type proxyTrust []netip.Prefix

// parseProxyTrust accepts single addresses and CIDR ranges. Blank entries
// are skipped.
func parseProxyTrust(entries []string) (proxyTrust, error) {
	var trust proxyTrust
	for _, raw := range entries {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if addr, err := netip.ParseAddr(value); err == nil {
			addr = addr.Unmap()
			trust = append(trust, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(value)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", value, err)
		}
		trust = append(trust, prefix.Masked())
	}
	return trust, nil
}

func (p proxyTrust) trusts(addr netip.Addr) bool {
	for _, prefix := range p {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP returns the address of the client behind r. Forwarding headers
// count only when the direct peer is trusted; X-Forwarded-For is read from
// the right, skipping the trusted hops, so a client cannot choose its key by
// prepending entries.
func (p proxyTrust) clientIP(r *http.Request) string {
	peer, ok := parseHostAddr(r.RemoteAddr)
	if !ok {
		return "unknown"
	}
	if !p.trusts(peer) {
		return peer.String()
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop, ok := parseHostAddr(hops[i])
		if !ok {
			break
		}
		if !p.trusts(hop) {
			return hop.String()
		}
	}
	if realIP, ok := parseHostAddr(r.Header.Get("X-Real-IP")); ok {
		return realIP.String()
	}
	return peer.String()
}

// parseHostAddr reads an address with or without a port.
func parseHostAddr(value string) (netip.Addr, bool) {
	value = strings.Trim(strings.TrimSpace(value), `"`)
	if value == "" {
		return netip.Addr{}, false
	}
	if addrPort, err := netip.ParseAddrPort(value); err == nil {
		return addrPort.Addr().Unmap(), true
	}
	addr, err := netip.ParseAddr(strings.Trim(value, "[]"))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// rateLimit limits requests per resolved client address.
func rateLimit(trust proxyTrust, requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return trust.clientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "Too many requests")
		}),
	)
}
