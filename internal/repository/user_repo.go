package repository

import (
	"database/sql"
	"fmt"

	"kidsactivity/internal/database"
	"kidsactivity/internal/models"
)

// UserRepository handles database operations for parent accounts
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser creates a new account
func (r *UserRepository) CreateUser(email, passwordHash, name string) (*models.User, error) {
	query := `INSERT INTO users (email, password_hash, name) VALUES (?, ?, ?)`
	id, err := r.db.ExecReturningID(query, email, passwordHash, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return r.GetUserByID(id)
}

// GetUserByID retrieves a user by ID, or nil if none exists
func (r *UserRepository) GetUserByID(id int64) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, name, oauth_provider, oauth_subject, created_at, updated_at
		FROM users WHERE id = ?
	`
	return r.scanUser(r.db.QueryRow(query, id))
}

// GetUserByEmail retrieves a user by normalized email, or nil if none exists
func (r *UserRepository) GetUserByEmail(email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, name, oauth_provider, oauth_subject, created_at, updated_at
		FROM users WHERE email = ?
	`
	return r.scanUser(r.db.QueryRow(query, email))
}

// GetUserByOAuth retrieves a user by OAuth provider and subject
func (r *UserRepository) GetUserByOAuth(provider, subject string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, name, oauth_provider, oauth_subject, created_at, updated_at
		FROM users WHERE oauth_provider = ? AND oauth_subject = ?
	`
	return r.scanUser(r.db.QueryRow(query, provider, subject))
}

// LinkOAuthProvider attaches an OAuth identity to an existing account
func (r *UserRepository) LinkOAuthProvider(userID int64, provider, subject string) error {
	query := `UPDATE users SET oauth_provider = ?, oauth_subject = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := r.db.Exec(query, provider, subject, userID); err != nil {
		return fmt.Errorf("failed to link oauth provider: %w", err)
	}
	return nil
}

func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name,
		&user.OAuthProvider, &user.OAuthSubject, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
