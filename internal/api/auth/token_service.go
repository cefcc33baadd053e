// Package auth issues and validates session tokens for the chat API.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/avachat/pkg/models"
)

// TokenService handles JWT session creation, validation, and revocation.
// Only a SHA256 hash of the session token ever touches the database.
type TokenService struct {
	db        *sql.DB
	secretKey []byte

	SessionDuration time.Duration
}

// JWTClaims represents the claims in our session tokens
type JWTClaims struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	TokenHash string `json:"token_hash"` // Reference to database session
	jwt.RegisteredClaims
}

// NewTokenService creates a new token service
func NewTokenService(db *sql.DB, secretKey string, sessionTTL time.Duration) *TokenService {
	if sessionTTL <= 0 {
		sessionTTL = 12 * time.Hour
	}
	return &TokenService{
		db:              db,
		secretKey:       []byte(secretKey),
		SessionDuration: sessionTTL,
	}
}

func (ts *TokenService) generateRandomToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func (ts *TokenService) hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// CreateSession stores a session row and returns a signed JWT for it.
func (ts *TokenService) CreateSession(user *models.User) (string, time.Time, error) {
	sessionToken, err := ts.generateRandomToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	tokenHash := ts.hashToken(sessionToken)
	expiresAt := time.Now().Add(ts.SessionDuration)

	_, err = ts.db.Exec(`
		INSERT INTO sessions (user_id, token_hash, created_at, expires_at)
		VALUES ($1, $2, NOW(), $3)
	`, user.ID, tokenHash, expiresAt)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store session: %w", err)
	}

	claims := &JWTClaims{
		UserID:    user.ID,
		Email:     user.Email,
		TokenHash: tokenHash,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "ava",
			Subject:   fmt.Sprintf("user_%d", user.ID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	jwtString, err := token.SignedString(ts.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign JWT: %w", err)
	}

	return jwtString, expiresAt, nil
}

// ValidateToken validates a session JWT and returns its user.
func (ts *TokenService) ValidateToken(tokenString string) (*models.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	var sessionExists bool
	err = ts.db.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM sessions
			WHERE user_id = $1
			AND token_hash = $2
			AND revoked_at IS NULL
			AND expires_at > NOW()
		)
	`, claims.UserID, claims.TokenHash).Scan(&sessionExists)
	if err != nil {
		return nil, fmt.Errorf("failed to check session: %w", err)
	}
	if !sessionExists {
		return nil, fmt.Errorf("session not found or expired")
	}

	user := &models.User{}
	err = ts.db.QueryRow(`
		SELECT id, email, password_hash, display_name, is_admin, created_at, updated_at
		FROM users WHERE id = $1
	`, claims.UserID).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName,
		&user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// RevokeSession marks the session behind a JWT as revoked.
func (ts *TokenService) RevokeSession(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return ts.secretKey, nil
	})
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return fmt.Errorf("invalid token claims")
	}

	_, err = ts.db.Exec(`
		UPDATE sessions SET revoked_at = NOW()
		WHERE user_id = $1 AND token_hash = $2 AND revoked_at IS NULL
	`, claims.UserID, claims.TokenHash)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
