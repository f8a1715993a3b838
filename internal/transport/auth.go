package transport

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/rpggio/promptkeeper/internal/config"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type clientKey struct{}

// ClientResolver resolves a client name from a bearer token.
type ClientResolver interface {
	ResolveClient(ctx context.Context, token string) (string, error)
}

// ClientFromContext returns the authenticated client name, if present.
func ClientFromContext(ctx context.Context) (string, bool) {
	client, ok := ctx.Value(clientKey{}).(string)
	return client, ok
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver ClientResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			client, err := resolver.ResolveClient(r.Context(), token)
			if err != nil || client == "" {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), clientKey{}, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// KeyResolver matches bearer tokens against the configured key hashes.
type KeyResolver struct {
	keys []config.APIKey
}

// NewKeyResolver creates a resolver over keys.
func NewKeyResolver(keys []config.APIKey) *KeyResolver {
	return &KeyResolver{keys: keys}
}

// ResolveClient returns the client whose key hash matches token.
func (r *KeyResolver) ResolveClient(_ context.Context, token string) (string, error) {
	hash := []byte(config.HashToken(token))
	for _, key := range r.keys {
		if subtle.ConstantTimeCompare(hash, []byte(strings.ToLower(key.KeyHash))) == 1 {
			return key.Client, nil
		}
	}
	return "", ErrUnauthorized
}
