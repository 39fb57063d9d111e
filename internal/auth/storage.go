// Package auth provides bearer-token management and extraction for the
// knowledge mutation endpoints.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// TokenPrefix identifies tokens issued by this service.
const TokenPrefix = "shifa_"

// TokenStorage manages authentication tokens in the database
type TokenStorage struct {
	db *sql.DB
}

// TokenInfo represents public token information (no sensitive data)
type TokenInfo struct {
	TokenID    string     `json:"token_id"`
	ClientName string     `json:"client_name"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	IsActive   bool       `json:"is_active"`
}

// CreateTokenRequest contains parameters for creating a new token
type CreateTokenRequest struct {
	ClientName string     `json:"client_name"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// CreateTokenResponse contains the newly created token (including the raw token)
type CreateTokenResponse struct {
	Token     string    `json:"token"` // Raw token (only returned once)
	TokenInfo TokenInfo `json:"token_info"`
}

// NewTokenStorage creates a new token storage instance
func NewTokenStorage(db *sql.DB) *TokenStorage {
	return &TokenStorage{db: db}
}

// hashToken returns the hex-encoded SHA-256 of a raw token. Only the
// hash is ever stored.
func hashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

// CreateToken generates and stores a new authentication token
func (ts *TokenStorage) CreateToken(req CreateTokenRequest) (*CreateTokenResponse, error) {
	if strings.TrimSpace(req.ClientName) == "" {
		return nil, fmt.Errorf("client_name is required")
	}

	tokenBytes := make([]byte, 32) // 256 bits
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random token: %w", err)
	}
	rawToken := TokenPrefix + hex.EncodeToString(tokenBytes)

	tokenID := uuid.New().String()

	_, err := ts.db.Exec(`
		INSERT INTO auth_tokens (token_id, client_name, hashed_token, created_at, expires_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tokenID,
		strings.TrimSpace(req.ClientName),
		hashToken(rawToken),
		time.Now(),
		req.ExpiresAt,
		true,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	tokenInfo, err := ts.GetTokenInfo(tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve created token: %w", err)
	}

	return &CreateTokenResponse{Token: rawToken, TokenInfo: *tokenInfo}, nil
}

// ValidateToken checks if a token is valid and updates last_used_at
func (ts *TokenStorage) ValidateToken(rawToken string) (*TokenInfo, error) {
	if rawToken == "" {
		return nil, fmt.Errorf("token is required")
	}

	var info TokenInfo
	row := ts.db.QueryRow(`
		SELECT token_id, client_name, created_at, expires_at, last_used_at, is_active
		FROM auth_tokens
		WHERE hashed_token = ? AND is_active = 1`, hashToken(rawToken))

	err := row.Scan(&info.TokenID, &info.ClientName, &info.CreatedAt,
		&info.ExpiresAt, &info.LastUsedAt, &info.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("invalid token")
		}
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}

	if info.ExpiresAt != nil && time.Now().After(*info.ExpiresAt) {
		return nil, fmt.Errorf("token has expired")
	}

	// Best effort; validation succeeds even if the timestamp write fails.
	ts.db.Exec("UPDATE auth_tokens SET last_used_at = ? WHERE token_id = ?", time.Now(), info.TokenID)

	return &info, nil
}

// GetTokenInfo retrieves public information about a token by ID
func (ts *TokenStorage) GetTokenInfo(tokenID string) (*TokenInfo, error) {
	var info TokenInfo
	row := ts.db.QueryRow(`
		SELECT token_id, client_name, created_at, expires_at, last_used_at, is_active
		FROM auth_tokens
		WHERE token_id = ?`, tokenID)

	err := row.Scan(&info.TokenID, &info.ClientName, &info.CreatedAt,
		&info.ExpiresAt, &info.LastUsedAt, &info.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("token not found: %s", tokenID)
		}
		return nil, fmt.Errorf("failed to get token info: %w", err)
	}

	return &info, nil
}

// ListTokens returns all tokens (public info only). Inactive tokens are
// included only when includeInactive is set.
func (ts *TokenStorage) ListTokens(includeInactive bool) ([]TokenInfo, error) {
	query := `
		SELECT token_id, client_name, created_at, expires_at, last_used_at, is_active
		FROM auth_tokens`
	if !includeInactive {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY created_at DESC"

	rows, err := ts.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []TokenInfo
	for rows.Next() {
		var info TokenInfo
		if err := rows.Scan(&info.TokenID, &info.ClientName, &info.CreatedAt,
			&info.ExpiresAt, &info.LastUsedAt, &info.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, info)
	}

	return tokens, rows.Err()
}

// RevokeToken deactivates a token (sets is_active = false)
func (ts *TokenStorage) RevokeToken(tokenID string) error {
	result, err := ts.db.Exec("UPDATE auth_tokens SET is_active = 0 WHERE token_id = ?", tokenID)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("token not found: %s", tokenID)
	}

	return nil
}
