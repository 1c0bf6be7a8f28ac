// Package directory provides read-only lookup of clinic users. The booking
// engine only consumes doctor records; user management itself lives outside
// this service.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID         uuid.UUID
	FirstName  string
	LastName   string
	Email      string
	Phone      *string
	Role       string
	Department *string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Directory is the lookup contract consumed by the booking engine and the
// availability endpoints.
type Directory interface {
	// GetUser returns the user with the given id, or ErrUserNotFound.
	// Role and active checks are the caller's concern.
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)

	// ListActiveDoctors returns active doctor records, optionally filtered
	// by department, ordered by department then first name.
	ListActiveDoctors(ctx context.Context, department string) ([]User, error)

	// CountActiveDoctors returns the number of active doctors.
	CountActiveDoctors(ctx context.Context) (int, error)
}
