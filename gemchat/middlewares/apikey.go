// gemchat/middlewares/apikey.go
package middlewares

import (
	"context"
	"net/http"
)

type contextKey string

const APIKeyKey contextKey = "api_key"

const apiKeyHeader = "X-Api-Key"

// APIKeyMiddleware copies the caller-supplied generation credential into
// the request context. This is passthrough only: requests without a key
// proceed and fail later at the backend if one is required.
func APIKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), APIKeyKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// APIKeyFromContext returns the per-request key, or "" when none was sent.
func APIKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(APIKeyKey).(string)
	return key
}
