package auth

import (
	"net/http"
	"strings"
)

// TokenSource indicates where a token was extracted from
type TokenSource int

const (
	// TokenSourceNone indicates no token was found
	TokenSourceNone TokenSource = iota
	// TokenSourceBearerHeader indicates token from Authorization: Bearer header
	TokenSourceBearerHeader
	// TokenSourceAPIKeyHeader indicates token from X-API-Key header
	TokenSourceAPIKeyHeader
	// TokenSourceQueryParam indicates token from ?token= query parameter
	TokenSourceQueryParam
)

// String returns the human-readable name of the token source
func (s TokenSource) String() string {
	switch s {
	case TokenSourceBearerHeader:
		return "bearer_header"
	case TokenSourceAPIKeyHeader:
		return "api_key_header"
	case TokenSourceQueryParam:
		return "query_param"
	default:
		return "none"
	}
}

// ExtractedToken contains the extracted token and metadata about extraction
type ExtractedToken struct {
	// Token is the raw token value (may be empty if not found)
	Token string
	// Source indicates where the token was extracted from
	Source TokenSource
	// IsMalformed indicates the token location was found but format was wrong
	// (e.g., "Authorization: Bearer" with no actual token)
	IsMalformed bool
}

// TokenExtractor handles extraction of authentication tokens from HTTP requests
type TokenExtractor struct {
	extractors []func(*http.Request) ExtractedToken
}

// NewTokenExtractor creates a new TokenExtractor with default extraction sources.
// Extraction is attempted in priority order:
// 1. Authorization: Bearer <token>
// 2. X-API-Key: <token>
// 3. ?token=<token>
func NewTokenExtractor() *TokenExtractor {
	return &TokenExtractor{
		extractors: []func(*http.Request) ExtractedToken{
			extractFromBearerHeader,
			extractFromAPIKeyHeader,
			extractFromQueryParam,
		},
	}
}

// Extract attempts to extract a token from the request using all configured
// sources. Returns the first successful extraction or an empty result if no
// token found.
func (e *TokenExtractor) Extract(r *http.Request) ExtractedToken {
	for _, extractor := range e.extractors {
		result := extractor(r)
		// Return on first token found (even if malformed - for proper error messaging)
		if result.Token != "" || result.IsMalformed {
			return result
		}
	}
	return ExtractedToken{Source: TokenSourceNone}
}

// extractFromBearerHeader extracts token from Authorization: Bearer <token>
func extractFromBearerHeader(r *http.Request) ExtractedToken {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ExtractedToken{}
	}

	// Must start with "Bearer " (case-insensitive per RFC 7235)
	const bearerPrefix = "Bearer "
	if len(auth) < len(bearerPrefix) || !strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
		return ExtractedToken{}
	}

	token := strings.TrimSpace(auth[len(bearerPrefix):])
	if token == "" {
		// "Authorization: Bearer " was present but no token followed
		return ExtractedToken{Source: TokenSourceBearerHeader, IsMalformed: true}
	}

	return ExtractedToken{Token: token, Source: TokenSourceBearerHeader}
}

// extractFromAPIKeyHeader extracts token from X-API-Key header
func extractFromAPIKeyHeader(r *http.Request) ExtractedToken {
	token := strings.TrimSpace(r.Header.Get("X-API-Key"))
	if token == "" {
		return ExtractedToken{}
	}
	return ExtractedToken{Token: token, Source: TokenSourceAPIKeyHeader}
}

// extractFromQueryParam extracts token from ?token= query parameter
func extractFromQueryParam(r *http.Request) ExtractedToken {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		return ExtractedToken{}
	}
	return ExtractedToken{Token: token, Source: TokenSourceQueryParam}
}
