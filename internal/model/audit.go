package model

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded on a request.
const (
	ActionRequestCreated     = "request_created"
	ActionRequestBroadcasted = "request_broadcasted"
	ActionProviderInterested = "provider_interested"
	ActionProviderAccepted   = "provider_accepted"
	ActionProviderAssigned   = "provider_assigned"
	ActionProviderRejected   = "provider_rejected"
	ActionStatusUpdated      = "status_updated"
)

// AuditEntry is one append-only record in a request's audit log.
type AuditEntry struct {
	ID         string    `json:"id" bson:"id"`
	Action     string    `json:"action" bson:"action"`
	Actor      string    `json:"actor" bson:"actor"`
	ProviderID *int64    `json:"provider_id,omitempty" bson:"provider_id,omitempty"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	Details    string    `json:"details" bson:"details"`
}

func NewAuditEntry(action, actor string, providerID *int64, details string, at time.Time) AuditEntry {
	return AuditEntry{
		ID:         uuid.New().String(),
		Action:     action,
		Actor:      actor,
		ProviderID: cloneInt64(providerID),
		Timestamp:  at.UTC(),
		Details:    details,
	}
}
