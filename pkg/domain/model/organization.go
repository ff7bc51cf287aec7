package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
)

// DefaultSLADays is the SLA window applied when an organization does not configure one
const DefaultSLADays = 7

// OrganizationID is a UUID-based identifier for Organization
type OrganizationID string

// NewOrganizationID generates a new UUID v4 OrganizationID
func NewOrganizationID() OrganizationID {
	return OrganizationID(uuid.New().String())
}

// Organization is the tenant root. Every other tenant-scoped entity references it.
type Organization struct {
	ID                OrganizationID `json:"id"`
	Name              string         `json:"name"`
	Slug              string         `json:"slug"`
	Industry          types.Industry `json:"industry"`
	IsActive          bool           `json:"isActive"`
	DefaultWorkflowID WorkflowID     `json:"defaultWorkflowId,omitempty"`
	SLADefaultDays    int            `json:"slaDefaultDays"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// SLAWindow returns the default time allowed to resolve an issue
func (o *Organization) SLAWindow() time.Duration {
	days := o.SLADefaultDays
	if days <= 0 {
		days = DefaultSLADays
	}
	return time.Duration(days) * 24 * time.Hour
}

// RoomKey returns the notification room of the organization
func (o *Organization) RoomKey() string {
	return RoomKey(o.ID)
}

// RoomKey returns the notification room of an organization
func RoomKey(orgID OrganizationID) string {
	return "tenant-" + string(orgID)
}

var slugSeparator = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name, collapses every run of non-alphanumeric characters
// into a single "-" and strips leading and trailing "-".
func Slugify(name string) string {
	slug := slugSeparator.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
