package transport

import (
	"context"
	"net/http"
)

// ContextIDHeader lets a caller label its requests, e.g. with a tab or
// window identifier. All callers share one collection.
const ContextIDHeader = "X-Context-Id"

type contextIDKey struct{}

// ContextIDFromContext returns the caller's context ID, if present.
func ContextIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextIDKey{}).(string)
	return id, ok
}

// ContextIDMiddleware extracts X-Context-Id and stores it in context.
func ContextIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(ContextIDHeader); id != "" {
			ctx := context.WithValue(r.Context(), contextIDKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		next.ServeHTTP(w, r)
	})
}
