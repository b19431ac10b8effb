package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	"github.com/zatekoja/carepoint/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

const uniqueViolation = "23505"

const userColumns = "id, email, full_name, role, password_hash, created_at, updated_at"

// UserAdapter implements the UserRepository interface
type UserAdapter struct {
	db *sqlx.DB
}

// NewUserAdapter creates a new user adapter
func NewUserAdapter(client *postgres.Client) repositories.UserRepository {
	return &UserAdapter{db: client.DBX()}
}

// Create creates a new user. Emails are stored lowercased.
func (a *UserAdapter) Create(ctx context.Context, user *entities.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := a.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :email, :full_name, :role, :password_hash, :created_at, :updated_at)`, user)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return apperrors.NewConflictError("an account with this email already exists")
		}
		return apperrors.NewInternalError("failed to create user", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (a *UserAdapter) GetByID(ctx context.Context, id string) (*entities.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", id))
	}
	return a.getOne(ctx, "user with id "+id, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by email
func (a *UserAdapter) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return a.getOne(ctx, "user with email "+email, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// UpdateFullName changes the user's display name
func (a *UserAdapter) UpdateFullName(ctx context.Context, id, fullName string) (*entities.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", id))
	}
	return a.getOne(ctx, "user with id "+id,
		`UPDATE users SET full_name = $1, updated_at = NOW() WHERE id = $2 RETURNING `+userColumns,
		fullName, id)
}

// UpdateRole changes the user's role
func (a *UserAdapter) UpdateRole(ctx context.Context, id string, role entities.Role) (*entities.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", id))
	}
	return a.getOne(ctx, "user with id "+id,
		`UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2 RETURNING `+userColumns,
		string(role), id)
}

// UpdateRoleByEmail changes the role of the user with email
func (a *UserAdapter) UpdateRoleByEmail(ctx context.Context, email string, role entities.Role) error {
	email = strings.ToLower(strings.TrimSpace(email))
	result, err := a.db.ExecContext(ctx,
		`UPDATE users SET role = $1, updated_at = NOW() WHERE email = $2`, string(role), email)
	if err != nil {
		return apperrors.NewInternalError("failed to update user role", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("user with email %s not found", email))
	}
	return nil
}

func (a *UserAdapter) getOne(ctx context.Context, what, query string, args ...any) (*entities.User, error) {
	user := &entities.User{}
	err := a.db.GetContext(ctx, user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(what + " not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load user", err)
	}
	return user, nil
}
