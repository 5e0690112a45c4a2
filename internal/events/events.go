// Package events publishes booking state changes for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/sudo-init-do/homeswift/internal/model"
)

// Event is emitted after a booking write commits. Type matches the audit action.
type Event struct {
	Type       string       `json:"type"`
	RequestID  int64        `json:"request_id"`
	Status     model.Status `json:"status"`
	ProviderID *int64       `json:"provider_id,omitempty"`
	Actor      string       `json:"actor,omitempty"`
	Version    int64        `json:"version"`
	At         time.Time    `json:"at"`
}

// RoutingKey is the topic key, e.g. booking.provider_accepted.
func (e Event) RoutingKey() string {
	return "booking." + e.Type
}

// FromRequest builds an event describing r after action.
func FromRequest(action, actor string, r *model.ServiceRequest) Event {
	ev := Event{
		Type:      action,
		RequestID: r.RequestID,
		Status:    r.Status,
		Actor:     actor,
		Version:   r.Version,
		At:        r.UpdatedAt,
	}
	if r.AssignedProviderID != nil {
		id := *r.AssignedProviderID
		ev.ProviderID = &id
	}
	return ev
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
