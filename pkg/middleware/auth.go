package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/logger"
)

// KeyValidator resolves a raw key to the name of its owner. Rejections wrap
// apperrors.ErrUnauthorized.
type KeyValidator interface {
	Validate(ctx context.Context, raw string) (string, error)
}

type keyOwnerKey struct{}

// RequireKey rejects requests that do not present a valid key via
// "Authorization: Bearer <key>" or X-API-Key.
func RequireKey(v KeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractKey(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "missing api key")
				return
			}
			owner, err := v.Validate(r.Context(), raw)
			if err != nil {
				if errors.Is(err, apperrors.ErrUnauthorized) {
					writeError(w, http.StatusUnauthorized, err.Error())
					return
				}
				logger.FromContext(r.Context()).Error("key validation failed", "error", err)
				writeError(w, http.StatusInternalServerError, "authentication error")
				return
			}
			ctx := context.WithValue(r.Context(), keyOwnerKey{}, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// KeyOwner returns the owner attached by RequireKey, or "".
func KeyOwner(ctx context.Context) string {
	owner, _ := ctx.Value(keyOwnerKey{}).(string)
	return owner
}

func extractKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.Header.Get("X-API-Key")
}
