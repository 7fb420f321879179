package middleware

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"

	"github.com/malwarebo/invoicer/security"
	"github.com/malwarebo/invoicer/utils"
)

type AuthMiddleware struct {
	jwtManager  *security.JWTManager
	rateLimiter *security.RateLimiter
}

// CreateAuthMiddleware builds the middleware. rateLimiter may be nil, which
// disables rate limiting.
func CreateAuthMiddleware(jwtManager *security.JWTManager, rateLimiter *security.RateLimiter) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager:  jwtManager,
		rateLimiter: rateLimiter,
	}
}

// JWTMiddleware requires a valid bearer token and puts its subject on the
// request context.
func (am *AuthMiddleware) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeErrorResponse(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeErrorResponse(w, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		claims, err := am.jwtManager.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			message := "Invalid token"
			if errors.Is(err, security.ErrTokenExpired) {
				message = "Token expired"
			}
			utils.Warn(r.Context(), "Rejected bearer token", map[string]interface{}{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			writeErrorResponse(w, http.StatusUnauthorized, message)
			return
		}

		ctx := utils.WithUserID(r.Context(), claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimitMiddleware limits each client IP independently.
func (am *AuthMiddleware) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if am.rateLimiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := ClientIP(r)
		if !am.rateLimiter.Allow(key) {
			retryAfter := am.rateLimiter.RetryAfter(key)
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(retryAfter.Seconds()))))
			writeErrorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP is the host part of the connection's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
