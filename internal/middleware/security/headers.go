package security

import (
	"fmt"
	"net/http"
	"strings"
)

// HeadersConfig holds security and CORS header configuration for the JSON API.
type HeadersConfig struct {
	// AllowedOrigins for CORS. "*" allows any origin, which is what the
	// classroom front end expects when served from a separate dev server.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string

	CSP                 string
	HSTSMaxAge          int
	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
}

func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		AllowedOrigins:      []string{"*"},
		AllowedMethods:      []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:      []string{"Content-Type", "X-Request-ID"},
		CSP:                 "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:          31536000, // 1 year
		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "no-referrer",
	}
}

// HeadersMiddleware applies security and CORS headers and answers preflights.
type HeadersMiddleware struct {
	config  HeadersConfig
	anyOrig bool
	origins map[string]bool
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{config: config, origins: map[string]bool{}}
	for _, o := range config.AllowedOrigins {
		if o == "*" {
			h.anyOrig = true
		}
		h.origins[strings.TrimRight(o, "/")] = true
	}
	return h
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.applyHeaders(w, r)

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *HeadersMiddleware) applyHeaders(w http.ResponseWriter, r *http.Request) {
	headers := w.Header()

	headers.Set("X-Content-Type-Options", h.config.XContentTypeOptions)
	headers.Set("X-Frame-Options", h.config.XFrameOptions)
	headers.Set("Referrer-Policy", h.config.ReferrerPolicy)
	if h.config.CSP != "" {
		headers.Set("Content-Security-Policy", h.config.CSP)
	}
	if r.TLS != nil && h.config.HSTSMaxAge > 0 {
		headers.Set("Strict-Transport-Security", fmt.Sprintf("max-age=%d; includeSubDomains", h.config.HSTSMaxAge))
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	switch {
	case h.anyOrig:
		headers.Set("Access-Control-Allow-Origin", "*")
	case h.origins[strings.TrimRight(origin, "/")]:
		headers.Set("Access-Control-Allow-Origin", origin)
		headers.Add("Vary", "Origin")
	default:
		return
	}
	headers.Set("Access-Control-Allow-Methods", strings.Join(h.config.AllowedMethods, ", "))
	headers.Set("Access-Control-Allow-Headers", strings.Join(h.config.AllowedHeaders, ", "))
	headers.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
}
