package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the single page app to call the API from another origin.
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{allowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id", GatewayUserHeader},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	})
}
