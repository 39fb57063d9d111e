package auth

import (
	"net/http/httptest"
	"testing"
)

func TestTokenExtractor(t *testing.T) {
	extractor := NewTokenExtractor()

	tests := []struct {
		name          string
		authorization string
		apiKey        string
		url           string
		wantToken     string
		wantSource    TokenSource
		wantMalformed bool
	}{
		{
			name:          "bearer header",
			authorization: "Bearer shifa_abc123",
			url:           "/api/knowledge",
			wantToken:     "shifa_abc123",
			wantSource:    TokenSourceBearerHeader,
		},
		{
			name:          "bearer header case insensitive",
			authorization: "bearer shifa_abc123",
			url:           "/api/knowledge",
			wantToken:     "shifa_abc123",
			wantSource:    TokenSourceBearerHeader,
		},
		{
			name:          "bearer header empty token",
			authorization: "Bearer ",
			url:           "/api/knowledge",
			wantSource:    TokenSourceBearerHeader,
			wantMalformed: true,
		},
		{
			name:          "non-bearer authorization ignored",
			authorization: "Basic dXNlcjpwYXNz",
			url:           "/api/knowledge",
			wantSource:    TokenSourceNone,
		},
		{
			name:       "api key header",
			apiKey:     "shifa_def456",
			url:        "/api/knowledge",
			wantToken:  "shifa_def456",
			wantSource: TokenSourceAPIKeyHeader,
		},
		{
			name:       "query parameter",
			url:        "/api/knowledge?token=shifa_ghi789",
			wantToken:  "shifa_ghi789",
			wantSource: TokenSourceQueryParam,
		},
		{
			name:          "bearer wins over api key",
			authorization: "Bearer shifa_abc123",
			apiKey:        "shifa_def456",
			url:           "/api/knowledge?token=shifa_ghi789",
			wantToken:     "shifa_abc123",
			wantSource:    TokenSourceBearerHeader,
		},
		{
			name:       "no token anywhere",
			url:        "/api/knowledge",
			wantSource: TokenSourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.url, nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}

			got := extractor.Extract(req)
			if got.Token != tt.wantToken {
				t.Errorf("token = %q, want %q", got.Token, tt.wantToken)
			}
			if got.Source != tt.wantSource {
				t.Errorf("source = %v, want %v", got.Source, tt.wantSource)
			}
			if got.IsMalformed != tt.wantMalformed {
				t.Errorf("malformed = %v, want %v", got.IsMalformed, tt.wantMalformed)
			}
		})
	}
}

func TestTokenSourceString(t *testing.T) {
	tests := []struct {
		source TokenSource
		want   string
	}{
		{TokenSourceBearerHeader, "bearer_header"},
		{TokenSourceAPIKeyHeader, "api_key_header"},
		{TokenSourceQueryParam, "query_param"},
		{TokenSourceNone, "none"},
	}
	for _, tt := range tests {
		if got := tt.source.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.source, got, tt.want)
		}
	}
}
