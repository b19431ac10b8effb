package repositories

import (
	"context"

	"github.com/zatekoja/carepoint/internal/domain/entities"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*entities.User, error)

	// UpdateFullName changes the user's display name
	UpdateFullName(ctx context.Context, id, fullName string) (*entities.User, error)

	// UpdateRole changes the user's role
	UpdateRole(ctx context.Context, id string, role entities.Role) (*entities.User, error)

	// UpdateRoleByEmail changes the role of the user with email
	UpdateRoleByEmail(ctx context.Context, email string, role entities.Role) error
}

// FileRepository stores uploaded files
type FileRepository interface {
	Save(ctx context.Context, file *entities.StoredFile) error
	Get(ctx context.Context, id string) (*entities.StoredFile, error)
}
