package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "trustgrid/pkg/domain"
	"trustgrid/pkg/requestcontext"
)

// callerClaims is the token shape issued by the excluded auth layer. The
// trust layer does not mint tokens; it only verifies the signature and lifts
// the caller key into the request context.
type callerClaims struct {
	CallerKey string `json:"caller_key"`
	jwt.RegisteredClaims
}

// RequireAuth verifies the bearer token and injects the caller key. Requests
// without a valid token are rejected before reaching any service.
func RequireAuth(signingKey string) func(http.Handler) http.Handler {
	keyFunc := func(t *jwt.Token) (any, error) {
		return []byte(signingKey), nil
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			claims := &callerClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, keyFunc,
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !parsed.Valid {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			caller, err := id.ParseKey(claims.CallerKey)
			if err != nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			ctx := requestcontext.WithCallerKey(r.Context(), caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
