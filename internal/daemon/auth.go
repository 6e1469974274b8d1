package daemon

import (
	"context"
	"net/http"
	"strings"

	"shuttle/internal/auth"
)

type operatorKey struct{}

// operatorFrom returns the authenticated principal for a request.
func operatorFrom(ctx context.Context) string {
	if subject, ok := ctx.Value(operatorKey{}).(string); ok {
		return subject
	}
	return ""
}

// authMiddleware validates bearer credentials before any handler work. It
// accepts the static admin token or a valid operator JWT and records the
// authenticated subject on the request context.
func authMiddleware(adminToken, tokenSecret string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		subject, err := auth.Verify(adminToken, tokenSecret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), operatorKey{}, subject)))
	}
}
