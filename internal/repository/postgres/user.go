package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/booking-api/internal/model"
	apperrors "github.com/carebook/booking-api/pkg/errors"
)

// Create inserts the credentials row and the matching role profile (doctors
// or patients, sharing the user id) in one transaction, so every actor id in
// a token resolves to a profile row.
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO users (id, email, password_hash, name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	if _, err := tx.ExecContext(ctx, query, user.ID, user.Email, user.PasswordHash, user.Name, user.Role, now); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	switch user.Role {
	case model.RoleDoctor:
		profile := `
			INSERT INTO doctors (id, name, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
		`
		if _, err := tx.ExecContext(ctx, profile, user.ID, user.Name, now); err != nil {
			return fmt.Errorf("failed to create doctor profile: %w", err)
		}
	case model.RolePatient:
		profile := `
			INSERT INTO patients (id, name, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
		`
		if _, err := tx.ExecContext(ctx, profile, user.ID, user.Name, now); err != nil {
			return fmt.Errorf("failed to create patient profile: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user: %w", err)
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, email, password_hash, name, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user model.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("user", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, email, password_hash, name, role, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var user model.User
	err := r.db.GetContext(ctx, &user, query, email)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("user", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}
