package middleware

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/markdave123-py/vectora/internal/services"
)

type contextKey string

const callerKey contextKey = "caller"

// CallerFromContext returns the authenticated caller, or nil for anonymous.
func CallerFromContext(ctx context.Context) *services.Caller {
	c, _ := ctx.Value(callerKey).(*services.Caller)
	return c
}

// JWTMiddleware validates the Authorization header and attaches the caller
// identity (user id + role) to the request context. Requests without a valid
// token are rejected.
func JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFromRequest(r)
		if !ok {
			http.Error(w, "missing or invalid token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalJWTMiddleware attaches the caller when a valid token is present
// and lets anonymous requests through. Used on routes where anonymous
// callers see the public subset.
func OptionalJWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if caller, ok := callerFromRequest(r); ok {
			r = r.WithContext(context.WithValue(r.Context(), callerKey, caller))
		}
		next.ServeHTTP(w, r)
	})
}

func callerFromRequest(r *http.Request) (*services.Caller, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil, false
	}

	tokenStr := strings.TrimPrefix(auth, "Bearer ")
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, false
	}
	role, _ := claims["role"].(string)
	return &services.Caller{UserID: userID, Role: role}, true
}
