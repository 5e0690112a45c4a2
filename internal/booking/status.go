package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sudo-init-do/homeswift/internal/alerts"
	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/store"
)

// StatusChange carries the admin-supplied extras of an UpdateStatus call.
type StatusChange struct {
	Actor              string
	AssignedProviderID *int64
	Admin              store.AdminFields
}

// UpdateStatus is the admin override. Re-sending the current status, or an
// empty one, only writes admin fields and any assignment. No timestamps,
// status audit entry or email follow.
func (s *Service) UpdateStatus(ctx context.Context, requestID int64, next model.Status, change StatusChange) (*model.ServiceRequest, error) {
	if strings.TrimSpace(change.Actor) == "" {
		return nil, ErrMissingActor
	}
	if next != "" && !next.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", next, ErrInvalidState)
	}

	for range s.retries {
		r, err := s.getRequest(ctx, requestID)
		if err != nil {
			return nil, err
		}
		prev := r.Status
		target := next
		if target == "" {
			target = prev
		}
		changed := target != prev
		if prev.Terminal() && changed {
			return nil, fmt.Errorf("request %d is %s: %w", requestID, prev, ErrInvalidState)
		}

		var assign *store.Assignment
		if id := change.AssignedProviderID; id != nil {
			switch {
			case r.AssignedTo(*id):
			case r.IsAssigned():
				return nil, &AssignmentConflict{RequestID: requestID, CurrentProvider: *r.AssignedProviderID}
			default:
				p, err := s.getProvider(ctx, *id)
				if err != nil {
					return nil, err
				}
				assign = &store.Assignment{ProviderID: p.ID, Name: p.Name, Email: p.Email, Phone: p.Phone, AssignedBy: change.Actor}
			}
		}
		if (r.IsAssigned() || assign != nil) && target.OpenForInterest() {
			return nil, fmt.Errorf("assigned request %d cannot move to %s: %w", requestID, target, ErrInvalidState)
		}
		if !changed && assign == nil && change.Admin.Empty() {
			return r, nil
		}

		now := s.now()
		guard := store.Guard{Version: r.Version}
		patch := store.Patch{}
		if !change.Admin.Empty() {
			admin := change.Admin
			patch.Admin = &admin
		}
		if assign != nil {
			guard.Unassigned = true
			patch.Assign = assign
			patch.AssignedAt = &now
			patch.Audit = append(patch.Audit, model.NewAuditEntry(model.ActionProviderAssigned, change.Actor, &assign.ProviderID,
				fmt.Sprintf("assigned to %s", assign.Name), now))
		}
		if changed {
			patch.Status = &target
			switch target {
			case model.StatusConfirmed:
				patch.ConfirmedAt = &now
			case model.StatusCompleted:
				patch.CompletedAt = &now
			}
			patch.Audit = append(patch.Audit, model.NewAuditEntry(model.ActionStatusUpdated, change.Actor, nil,
				fmt.Sprintf("%s -> %s", prev, target), now))
		}

		updated, err := s.requests.UpdateIf(ctx, requestID, guard, patch)
		if errors.Is(err, store.ErrGuardFailed) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update request %d: %w", requestID, err)
		}

		s.logger.InfoContext(ctx, "request status updated",
			"request_id", requestID, "from", prev, "to", updated.Status, "actor", change.Actor)
		if changed {
			s.notifyStatus(ctx, updated)
			s.publish(ctx, model.ActionStatusUpdated, change.Actor, updated)
		} else if assign != nil {
			s.publish(ctx, model.ActionProviderAssigned, change.Actor, updated)
		}
		return updated, nil
	}
	return nil, errRetriesSpent
}

func (s *Service) notifyStatus(ctx context.Context, r *model.ServiceRequest) {
	switch {
	case r.Status == model.StatusConfirmed && r.IsAssigned():
		s.notifyAssignment(ctx, r)
	case r.Status == model.StatusCompleted:
		s.notify(ctx, r.CustomerEmail, func() (alerts.Email, error) { return alerts.ServiceCompletion(r) },
			"request_id", r.RequestID, "template", "serviceCompletion")
	default:
		s.notify(ctx, r.CustomerEmail, func() (alerts.Email, error) { return alerts.StatusUpdate(r) },
			"request_id", r.RequestID, "template", "statusUpdate")
	}
}
