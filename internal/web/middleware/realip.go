package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type clientIPKey struct{}

// ClientIP resolves the address a request came from and stores it in the
// context. X-Real-IP and X-Forwarded-For are only read when the connection
// comes from a trusted proxy; the forwarded chain is walked from the right,
// skipping trusted hops, so a client cannot prepend a fake address.
//
// RemoteAddr is rewritten to the bare client address for handlers that read
// it directly.
func ClientIP(trustedProxies []string) func(http.Handler) http.Handler {
	trusted := parsePrefixes(trustedProxies)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := parseAddr(r.RemoteAddr)
			if isTrusted(addr, trusted) {
				addr = forwardedFor(r.Header, trusted, addr)
			}
			if !addr.IsValid() {
				next.ServeHTTP(w, r)
				return
			}

			r.RemoteAddr = addr.String()
			ctx := context.WithValue(r.Context(), clientIPKey{}, addr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIPFrom returns the address resolved by ClientIP, "" outside it.
func ClientIPFrom(ctx context.Context) string {
	addr, ok := ctx.Value(clientIPKey{}).(netip.Addr)
	if !ok {
		return ""
	}
	return addr.String()
}

// parsePrefixes accepts CIDRs and single addresses.
func parsePrefixes(values []string) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if p, err := netip.ParsePrefix(v); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(v); err == nil {
			a = a.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		slog.Warn("realip: invalid trusted proxy, skipping", "value", v)
	}
	return prefixes
}

// parseAddr reads "host:port" or a bare address. The zero Addr means the
// value was not an IP.
func parseAddr(s string) netip.Addr {
	s = strings.TrimSpace(s)
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}
	}
	return a.Unmap()
}

func isTrusted(a netip.Addr, trusted []netip.Prefix) bool {
	if !a.IsValid() {
		return false
	}
	for _, p := range trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// forwardedFor returns the first untrusted hop of the forwarding headers,
// or fallback when they carry nothing usable.
func forwardedFor(h http.Header, trusted []netip.Prefix, fallback netip.Addr) netip.Addr {
	if a := parseAddr(h.Get("X-Real-IP")); a.IsValid() {
		return a
	}

	hops := strings.Split(h.Get("X-Forwarded-For"), ",")
	client := fallback
	for i := len(hops) - 1; i >= 0; i-- {
		a := parseAddr(hops[i])
		if !a.IsValid() {
			break
		}
		client = a
		if !isTrusted(a, trusted) {
			break
		}
	}
	return client
}
