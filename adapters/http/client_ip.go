package authhttp

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPFunc picks the address the per-IP buckets are keyed on. An empty result
// skips rate limiting for the request.
type ClientIPFunc func(r *http.Request) string

// DefaultClientIP keys on RemoteAddr when it is a public address and returns "" for
// private peers, which are usually a proxy shared by many clients.
func DefaultClientIP() ClientIPFunc {
	return func(r *http.Request) string {
		ip := remoteIP(r)
		if ip == "" {
			return ""
		}
		parsed, err := netip.ParseAddr(ip)
		if err != nil {
			return ""
		}
		if isPublicAddr(parsed) {
			return parsed.String()
		}
		return ""
	}
}

// ClientIPFromForwardedHeaders reads X-Real-IP, CF-Connecting-IP and then the left-most
// X-Forwarded-For entry, but only when the peer is in trustedProxies.
func ClientIPFromForwardedHeaders(trustedProxies []netip.Prefix) ClientIPFunc {
	return func(r *http.Request) string {
		peer := remoteIP(r)
		if peer == "" {
			return ""
		}
		peerAddr, err := netip.ParseAddr(peer)
		if err != nil {
			return ""
		}
		trusted := false
		for _, p := range trustedProxies {
			if p.Contains(peerAddr) {
				trusted = true
				break
			}
		}
		if trusted {
			for _, h := range []string{"X-Real-IP", "CF-Connecting-IP", "X-Forwarded-For"} {
				if a, ok := headerAddr(r, h); ok {
					return a
				}
			}
		}
		if isPublicAddr(peerAddr) {
			return peerAddr.String()
		}
		return ""
	}
}

func headerAddr(r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(r.Header.Get(name))
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	if v == "" {
		return "", false
	}
	a, err := netip.ParseAddr(v)
	if err != nil || !isPublicAddr(a) {
		return "", false
	}
	return a.String(), true
}

func remoteIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if r.RemoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func isPublicAddr(a netip.Addr) bool {
	if !a.IsValid() {
		return false
	}
	if a.IsLoopback() || a.IsPrivate() || a.IsLinkLocalMulticast() || a.IsLinkLocalUnicast() {
		return false
	}
	if a.IsMulticast() || a.IsUnspecified() {
		return false
	}
	return true
}
