package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusClosed    UserStatus = "closed"
)

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

func (r UserRole) IsValid() bool {
	return r == UserRoleUser || r == UserRoleAdmin
}

type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	Role      UserRole
	Status    UserStatus
	CreatedAt time.Time
}

// UserRef is the minimal view of a user returned by the wallet directory.
type UserRef struct {
	ID    uuid.UUID
	Email string
	Name  string
}

type WalletAddress struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Asset     Asset
	Address   string
	CreatedAt time.Time
}
