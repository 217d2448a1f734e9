package middleware

import (
	"net/http"

	"lms-backend/pkg/utils"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
)

// CORS allows browser clients from the configured origins.
func CORS(cfg utils.HTTPConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})
}

// RateLimit caps requests per client IP over a sliding window.
func RateLimit(cfg utils.HTTPConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RateLimitRequests,
		cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			utils.ResponseJSON(w, http.StatusTooManyRequests, false,
				"Too many requests from this IP, please try again later", nil, nil)
		}),
	)
}

// SecureHeaders sets the usual hardening headers on every response.
func SecureHeaders(debug bool) func(http.Handler) http.Handler {
	sec := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		STSSeconds:            15552000,
		STSIncludeSubdomains:  true,
		ContentSecurityPolicy: "default-src 'self'",
		IsDevelopment:         debug,
	})
	return sec.Handler
}
