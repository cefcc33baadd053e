// Package users handles user accounts: creation, lookup, and credential
// verification.
package users

import (
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/avachat/pkg/models"
)

// Service handles core user management operations
type Service struct {
	db *sql.DB
}

// NewService creates a new user service
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Create adds a user with a bcrypt-hashed password.
func (s *Service) Create(email, displayName, password string, isAdmin bool) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	var existingID int64
	err := s.db.QueryRow("SELECT id FROM users WHERE email = $1", email).Scan(&existingID)
	if err != sql.ErrNoRows {
		if err == nil {
			return nil, fmt.Errorf("user with email %s already exists", email)
		}
		return nil, fmt.Errorf("failed to check existing email: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:       email,
		DisplayName: displayName,
		IsAdmin:     isAdmin,
	}
	err = s.db.QueryRow(`
		INSERT INTO users (email, password_hash, display_name, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, email, string(hashedPassword), displayName, isAdmin).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Authenticate verifies credentials and returns the user on success.
func (s *Service) Authenticate(email, password string) (*models.User, error) {
	user, err := s.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid email or password")
	}
	return user, nil
}

// GetByEmail returns the user or nil when not found.
func (s *Service) GetByEmail(email string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, email, password_hash, display_name, is_admin, created_at, updated_at
		FROM users WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))))
}

// GetByID returns the user or nil when not found.
func (s *Service) GetByID(id int64) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, email, password_hash, display_name, is_admin, created_at, updated_at
		FROM users WHERE id = $1
	`, id))
}

// GetByDisplayName returns the user or nil when not found.
func (s *Service) GetByDisplayName(displayName string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, email, password_hash, display_name, is_admin, created_at, updated_at
		FROM users WHERE display_name = $1
	`, strings.TrimSpace(displayName)))
}

// Primary returns the oldest account, used when a request carries no session.
// Returns nil when no users exist yet.
func (s *Service) Primary() (*models.User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, email, password_hash, display_name, is_admin, created_at, updated_at
		FROM users ORDER BY id ASC LIMIT 1
	`))
}

// HasUsers reports whether any account exists.
func (s *Service) HasUsers() (bool, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	return count > 0, nil
}

// Delete removes a user by display name.
func (s *Service) Delete(displayName string) error {
	result, err := s.db.Exec("DELETE FROM users WHERE display_name = $1", strings.TrimSpace(displayName))
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no user named %q", displayName)
	}
	return nil
}

// SetPassword replaces a user's password hash.
func (s *Service) SetPassword(userID int64, newPassword string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = s.db.Exec(
		"UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2",
		string(hashedPassword), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (s *Service) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName,
		&user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}
