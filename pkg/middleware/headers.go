package middleware

import "net/http"

// SecurityHeaders adds the response headers a JSON and worksheet API needs
type SecurityHeaders struct {
	isDevelopment bool
}

// NewSecurityHeaders creates a new security headers middleware
func NewSecurityHeaders(isDevelopment bool) *SecurityHeaders {
	return &SecurityHeaders{isDevelopment: isDevelopment}
}

// Middleware wraps an HTTP handler with security headers
func (sh *SecurityHeaders) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'")
		h.Set("Cache-Control", "no-store")

		// HSTS breaks plain-HTTP local setups
		if !sh.isDevelopment {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}
