package domain

import "time"

const (
	EventRegistrationApproved = "registration.approved"
	EventRegistrationRejected = "registration.rejected"
	EventBlockApproved        = "block.approved"
	EventBlockRejected        = "block.rejected"
	EventEditApproved         = "edit.approved"
	EventEditRejected         = "edit.rejected"
)

// ModerationEvent records one applied state transition.
type ModerationEvent struct {
	Id          string      `json:"id"`
	Type        string      `json:"type"`
	HashedEmail HashedEmail `json:"hashedEmail"`
	Actor       HashedEmail `json:"actor,omitempty"`
	OccurredAt  time.Time   `json:"occurredAt"`
}
