// Package security sets the hardening headers of the JSON API.
package security

import (
	"fmt"
	"net/http"
	"time"
)

// Config describes the response headers. Empty values are not sent.
type Config struct {
	ContentSecurityPolicy     string
	FrameOptions              string
	ReferrerPolicy            string
	CrossOriginResourcePolicy string
	// CacheControl applies to every response; ledger data must not be cached
	// by intermediaries.
	CacheControl string

	// HSTS is sent on TLS requests only. Zero disables it.
	HSTS                  time.Duration
	HSTSIncludeSubdomains bool
}

// DefaultConfig returns defaults for an API that serves no markup.
func DefaultConfig() Config {
	return Config{
		ContentSecurityPolicy:     "default-src 'none'; frame-ancestors 'none'",
		FrameOptions:              "DENY",
		ReferrerPolicy:            "no-referrer",
		CrossOriginResourcePolicy: "same-origin",
		CacheControl:              "no-store",
		HSTS:                      365 * 24 * time.Hour,
		HSTSIncludeSubdomains:     true,
	}
}

type header struct{ key, value string }

// Headers returns middleware applying cfg. X-Content-Type-Options is always nosniff.
func Headers(cfg Config) func(http.Handler) http.Handler {
	static := []header{{"X-Content-Type-Options", "nosniff"}}
	for _, h := range []header{
		{"Content-Security-Policy", cfg.ContentSecurityPolicy},
		{"X-Frame-Options", cfg.FrameOptions},
		{"Referrer-Policy", cfg.ReferrerPolicy},
		{"Cross-Origin-Resource-Policy", cfg.CrossOriginResourcePolicy},
		{"Cache-Control", cfg.CacheControl},
	} {
		if h.value != "" {
			static = append(static, h)
		}
	}

	var hsts string
	if seconds := int64(cfg.HSTS / time.Second); seconds > 0 {
		hsts = fmt.Sprintf("max-age=%d", seconds)
		if cfg.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, s := range static {
				h.Set(s.key, s.value)
			}
			if hsts != "" && r.TLS != nil {
				h.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}
