// Package users declares the user directory contract consumed by the
// session and password-reset services: identity lookup, creation, and
// password maintenance. Authentication decisions stay in the services;
// this package only moves records.
package users

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts a new user. A duplicate email fails with
	// common.ErrDuplicateUser.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// FindByEmail returns the user with the given email, or
	// common.ErrorNotFound.
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// FindByID returns the user with the given id, or common.ErrorNotFound.
	FindByID(ctx context.Context, id string) (*models.User, error)

	// UpdatePassword replaces the stored password hash. A missing user
	// fails with common.ErrorNotFound.
	UpdatePassword(ctx context.Context, id string, passwordHash string) error

	// TouchLastLogin stamps the user's last successful sign-in.
	TouchLastLogin(ctx context.Context, id string) error
}
