// Package middleware provides HTTP middleware for the Shifa gateway.
package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"shifa/internal/auth"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

// AuthContextKey is the context key for storing authentication info
const AuthContextKey contextKey = "auth"

// AuthInfo contains authenticated client information stored in request context
type AuthInfo struct {
	// TokenID is the unique identifier of the token
	TokenID string
	// ClientName is the name of the authenticated client
	ClientName string
	// ExpiresAt is when the token expires (nil for non-expiring tokens)
	ExpiresAt *time.Time
	// Source indicates where the token was extracted from
	Source auth.TokenSource
	// AuthenticatedAt is when this request was authenticated
	AuthenticatedAt time.Time
}

// GetAuthInfo retrieves authentication info from the request context.
// Returns nil if the request is not authenticated.
func GetAuthInfo(ctx context.Context) *AuthInfo {
	if info, ok := ctx.Value(AuthContextKey).(*AuthInfo); ok {
		return info
	}
	return nil
}

// AuthError represents an authentication error
type AuthError struct {
	// Code is the HTTP status code
	Code int `json:"-"`
	// Error is the error identifier (e.g., "unauthorized", "forbidden")
	Error string `json:"error"`
	// Message is a human-readable description (generic, no details)
	Message string `json:"message"`
}

// Standard auth errors - generic messages to avoid information leakage
var (
	ErrMissingToken = AuthError{
		Code:    http.StatusUnauthorized,
		Error:   "unauthorized",
		Message: "Authentication required",
	}
	ErrMalformedToken = AuthError{
		Code:    http.StatusUnauthorized,
		Error:   "unauthorized",
		Message: "Authentication required",
	}
	ErrInvalidToken = AuthError{
		Code:    http.StatusForbidden,
		Error:   "forbidden",
		Message: "Access denied",
	}
	ErrExpiredToken = AuthError{
		Code:    http.StatusForbidden,
		Error:   "forbidden",
		Message: "Access denied",
	}
)

// AuthMiddleware provides HTTP authentication middleware
type AuthMiddleware struct {
	storage   *auth.TokenStorage
	extractor *auth.TokenExtractor
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(storage *auth.TokenStorage) *AuthMiddleware {
	return &AuthMiddleware{
		storage:   storage,
		extractor: auth.NewTokenExtractor(),
	}
}

// Wrap wraps an http.Handler with authentication
func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		extracted := m.extractor.Extract(r)

		if extracted.Token == "" {
			if extracted.IsMalformed {
				m.sendError(w, ErrMalformedToken)
			} else {
				m.sendError(w, ErrMissingToken)
			}
			return
		}

		tokenInfo, err := m.storage.ValidateToken(extracted.Token)
		if err != nil {
			// Log for debugging without exposing the token value
			log.Printf("[Auth] Token validation failed from %s (source: %s): %s",
				r.RemoteAddr, extracted.Source, sanitizeError(err))

			if isExpiredError(err) {
				m.sendError(w, ErrExpiredToken)
			} else {
				m.sendError(w, ErrInvalidToken)
			}
			return
		}

		authInfo := &AuthInfo{
			TokenID:         tokenInfo.TokenID,
			ClientName:      tokenInfo.ClientName,
			ExpiresAt:       tokenInfo.ExpiresAt,
			Source:          extracted.Source,
			AuthenticatedAt: time.Now(),
		}

		log.Printf("[Auth] Request authenticated: client=%s path=%s source=%s",
			tokenInfo.ClientName, r.URL.Path, extracted.Source)

		ctx := context.WithValue(r.Context(), AuthContextKey, authInfo)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WrapFunc wraps an http.HandlerFunc with authentication
func (m *AuthMiddleware) WrapFunc(next http.HandlerFunc) http.HandlerFunc {
	return m.Wrap(next).ServeHTTP
}

// sendError sends an authentication error response
func (m *AuthMiddleware) sendError(w http.ResponseWriter, authErr AuthError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="shifa"`)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(authErr.Code)

	response := struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}{
		Error:   authErr.Error,
		Message: authErr.Message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("[Auth] Failed to encode error response: %v", err)
	}
}

// sanitizeError removes any token-related information from error messages
func sanitizeError(err error) string {
	if err == nil {
		return "unknown error"
	}
	switch {
	case strings.Contains(err.Error(), "expired"):
		return "token expired"
	case strings.Contains(err.Error(), "invalid"):
		return "invalid token"
	case strings.Contains(err.Error(), "required"):
		return "token required"
	default:
		return "validation failed"
	}
}

// isExpiredError checks if an error indicates token expiration
func isExpiredError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "expired")
}
