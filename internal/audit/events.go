package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/identura/authcore/internal/directory"
)

// EventType represents the type of access-lifecycle event.
type EventType string

// Event types.
const (
	// EventAccessDefined is emitted when an organization grant is
	// created or fully replaced.
	EventAccessDefined EventType = "access_defined"

	// EventAccessRemoved is emitted when an organization grant is
	// removed from an account.
	EventAccessRemoved EventType = "access_removed"
)

// Event is a domain event describing a change to an account's access.
type Event struct {
	// ID is a unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the type of event.
	Type EventType `json:"type"`

	// TenantID is the tenant the grant belongs to.
	TenantID string `json:"tenantId"`

	// AccountID is the account whose access changed.
	AccountID string `json:"accountId"`

	// OrganizationID is the organization the grant targets.
	OrganizationID string `json:"organizationId"`

	// Grant carries the new grant for EventAccessDefined; nil for
	// removals.
	Grant *directory.OrganizationAccess `json:"grant,omitempty"`
}

// NewEvent creates an event with a fresh id and timestamp.
func NewEvent(t EventType, tenantID, accountID, orgID string, grant *directory.OrganizationAccess) Event {
	return Event{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		Type:           t,
		TenantID:       tenantID,
		AccountID:      accountID,
		OrganizationID: orgID,
		Grant:          grant,
	}
}
