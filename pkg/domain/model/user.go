package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
)

// UserID is a UUID-based identifier for User
type UserID string

// NewUserID generates a new UUID v4 UserID
func NewUserID() UserID {
	return UserID(uuid.New().String())
}

// User belongs to exactly one organization. Users are deactivated, never deleted.
type User struct {
	ID             UserID         `json:"id"`
	OrganizationID OrganizationID `json:"organizationId"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	PasswordHash   string         `json:"-" masq:"secret"`
	Role           types.Role     `json:"role"`
	IsActive       bool           `json:"isActive"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// NormalizeEmail trims and lowercases an email address for uniqueness checks
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
