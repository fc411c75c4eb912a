package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/sukhavati-ingest/internal/domain/common"
)

// Auth validates bearer JWTs signed with secret. Requests to public paths pass through untouched.
func Auth(secret []byte, publicPaths ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(publicPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := ParseToken(secret, r.Header.Get("Authorization"))
			if err != nil {
				WriteJSON(w, http.StatusUnauthorized, common.Response{Error: err.Error()})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// ParseToken validates an "Authorization: Bearer" header value.
func ParseToken(secret []byte, header string) (*common.Claims, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: signing secret not configured", common.ErrUnauthenticated)
	}

	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: missing bearer token", common.ErrUnauthenticated)
	}

	claims := &common.Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", common.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: invalid token", common.ErrUnauthenticated)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", common.ErrUnauthenticated)
	}
	return claims, nil
}

// WithClaims stores validated claims in ctx.
func WithClaims(ctx context.Context, claims *common.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the claims of the authenticated caller.
func ClaimsFromContext(ctx context.Context) (*common.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*common.Claims)
	return claims, ok && claims != nil
}
