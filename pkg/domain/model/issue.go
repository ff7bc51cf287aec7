package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/compliflow/pkg/domain/types"
)

// IssueID is a UUID-based identifier for Issue
type IssueID string

// NewIssueID generates a new UUID v4 IssueID
func NewIssueID() IssueID {
	return IssueID(uuid.New().String())
}

// AISummary is one generated root-cause summary. Versions start at 1 and only grow.
type AISummary struct {
	Version     int       `json:"version"`
	Summary     string    `json:"summary"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Attachment is a file uploaded to an issue
type Attachment struct {
	Filename    string    `json:"filename"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// Issue is a compliance incident tracked through its organization's workflow
type Issue struct {
	ID             IssueID        `json:"id"`
	OrganizationID OrganizationID `json:"organizationId"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Category       types.Category `json:"category"`
	Priority       types.Priority `json:"priority"`
	Status         string         `json:"status"`
	AssigneeID     UserID         `json:"assigneeId,omitempty"`
	CreatorID      UserID         `json:"creatorId"`
	DueDate        time.Time      `json:"dueDate"`
	SLABreached    bool           `json:"slaBreached"`
	SLABreachedAt  *time.Time     `json:"slaBreachedAt,omitempty"`
	ResolvedAt     *time.Time     `json:"resolvedAt,omitempty"`
	AISummaries    []AISummary    `json:"aiSummaries"`
	Attachments    []Attachment   `json:"attachments"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// IsOverdue reports whether the SLA deadline has passed at now
func (i *Issue) IsOverdue(now time.Time) bool {
	return i.DueDate.Before(now)
}

// NextSummaryVersion returns the version number the next AI summary must use
func (i *Issue) NextSummaryVersion() int {
	latest := 0
	for _, s := range i.AISummaries {
		if s.Version > latest {
			latest = s.Version
		}
	}
	return latest + 1
}

// Copy returns a deep copy of the issue
func (i *Issue) Copy() *Issue {
	copied := *i
	if i.SLABreachedAt != nil {
		t := *i.SLABreachedAt
		copied.SLABreachedAt = &t
	}
	if i.ResolvedAt != nil {
		t := *i.ResolvedAt
		copied.ResolvedAt = &t
	}
	copied.AISummaries = slices.Clone(i.AISummaries)
	copied.Attachments = slices.Clone(i.Attachments)
	return &copied
}
