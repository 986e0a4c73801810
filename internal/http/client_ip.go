package http

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// defaultTrustedProxies are loopback and the private ranges.
var defaultTrustedProxies = []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

// clientIPResolver determines the caller address. Forwarding headers are
// honoured only when the direct peer is a trusted proxy.
type clientIPResolver struct {
	trusted []*net.IPNet
}

func newClientIPResolver(cidrs []string) (*clientIPResolver, error) {
	if len(cidrs) == 0 {
		cidrs = defaultTrustedProxies
	}
	r := &clientIPResolver{}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", cidr, err)
		}
		r.trusted = append(r.trusted, network)
	}
	return r, nil
}

func (c *clientIPResolver) isTrusted(ip net.IP) bool {
	for _, network := range c.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// resolve walks X-Forwarded-For from the right and returns the first hop that
// is not a trusted proxy, so a client cannot spoof the address by prepending
// entries. X-Real-IP is used when no X-Forwarded-For is present.
func (c *clientIPResolver) resolve(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	peerIP := net.ParseIP(peer)
	if peerIP == nil || !c.isTrusted(peerIP) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		client := peer
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			ip := net.ParseIP(hop)
			if ip == nil {
				break
			}
			client = hop
			if !c.isTrusted(ip) {
				break
			}
		}
		return client
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return peer
}

// rateLimitKey buckets authenticated callers by user and everyone else by IP.
func (c *clientIPResolver) rateLimitKey(r *http.Request) string {
	if userID := strings.TrimSpace(r.Header.Get(userIDHeader)); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.resolve(r)
}
