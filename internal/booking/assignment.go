package booking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sudo-init-do/homeswift/internal/alerts"
	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/store"
)

var (
	openStatuses    = []model.Status{model.StatusPending, model.StatusBroadcasted, model.StatusInterested}
	errRetriesSpent = fmt.Errorf("request kept changing during update: %w", ErrInvalidState)
)

// ShowInterest records a non-binding interest from a provider. The write is
// guarded by the version it was computed from and retried on conflict.
func (s *Service) ShowInterest(ctx context.Context, requestID, providerID int64) (*model.ServiceRequest, error) {
	provider, err := s.getProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	for range s.retries {
		r, err := s.getRequest(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if r.IsAssigned() || !r.Status.OpenForInterest() {
			return nil, fmt.Errorf("request %d is %s: %w", requestID, r.Status, ErrNotAvailable)
		}
		if r.InterestIndex(providerID) >= 0 {
			return nil, fmt.Errorf("provider %d on request %d: %w", providerID, requestID, ErrAlreadyInterested)
		}

		now := s.now()
		patch := store.Patch{
			Interested:    append(slices.Clone(r.InterestedProviders), provider.Snapshot(now)),
			SetInterested: true,
			Audit:         []model.AuditEntry{model.NewAuditEntry(model.ActionProviderInterested, provider.Email, &providerID, "", now)},
		}
		if r.Status != model.StatusInterested {
			patch.Status = ptr(model.StatusInterested)
		}
		updated, err := s.requests.UpdateIf(ctx, requestID,
			store.Guard{Statuses: openStatuses, Unassigned: true, Version: r.Version}, patch)
		if errors.Is(err, store.ErrGuardFailed) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("record interest on request %d: %w", requestID, err)
		}

		s.logger.InfoContext(ctx, "provider showed interest",
			"request_id", requestID, "provider_id", providerID, "actor", provider.Email)
		s.publish(ctx, model.ActionProviderInterested, provider.Email, updated)
		return updated, nil
	}
	return nil, errRetriesSpent
}

// AcceptBooking lets a provider take a pending request directly. Only one of
// any number of concurrent callers can win; the rest get an AssignmentConflict.
func (s *Service) AcceptBooking(ctx context.Context, requestID, providerID int64) (*model.ServiceRequest, error) {
	provider, err := s.getProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := s.requests.UpdateIf(ctx, requestID,
		store.Guard{Statuses: []model.Status{model.StatusPending}, Unassigned: true},
		store.Patch{
			Status: ptr(model.StatusConfirmed),
			Assign: &store.Assignment{
				ProviderID: provider.ID,
				Name:       provider.Name,
				Email:      provider.Email,
				Phone:      provider.Phone,
			},
			ConfirmedAt: &now,
			Audit:       []model.AuditEntry{model.NewAuditEntry(model.ActionProviderAccepted, provider.Email, &providerID, "", now)},
		})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("request %d: %w", requestID, ErrNotFound)
	case errors.Is(err, store.ErrGuardFailed):
		return nil, s.conflict(ctx, requestID, &providerID)
	case err != nil:
		return nil, fmt.Errorf("accept request %d: %w", requestID, err)
	}

	s.logger.InfoContext(ctx, "provider accepted booking",
		"request_id", requestID, "provider_id", providerID, "actor", provider.Email)
	s.notifyAssignment(ctx, updated)
	s.publish(ctx, model.ActionProviderAccepted, provider.Email, updated)
	return updated, nil
}

type AssignResult struct {
	Request *model.ServiceRequest
	// OthersNotified counts interested providers told the job went elsewhere.
	OthersNotified int
}

// AdminAssignProvider binds a provider chosen by an admin. Only a prior
// assignment blocks it; the current status does not.
func (s *Service) AdminAssignProvider(ctx context.Context, requestID, providerID int64, adminEmail string) (*AssignResult, error) {
	if strings.TrimSpace(adminEmail) == "" {
		return nil, ErrMissingActor
	}
	provider, err := s.getProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	r, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.IsAssigned() {
		return nil, &AssignmentConflict{RequestID: requestID, CurrentProvider: *r.AssignedProviderID, ByCaller: r.AssignedTo(providerID)}
	}

	now := s.now()
	updated, err := s.requests.UpdateIf(ctx, requestID,
		store.Guard{Unassigned: true},
		store.Patch{
			Status: ptr(model.StatusAssigned),
			Assign: &store.Assignment{
				ProviderID: provider.ID,
				Name:       provider.Name,
				Email:      provider.Email,
				Phone:      provider.Phone,
				AssignedBy: adminEmail,
			},
			AssignedAt: &now,
			Audit: []model.AuditEntry{model.NewAuditEntry(model.ActionProviderAssigned, adminEmail, &providerID,
				fmt.Sprintf("assigned to %s", provider.Name), now)},
		})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("request %d: %w", requestID, ErrNotFound)
	case errors.Is(err, store.ErrGuardFailed):
		return nil, s.conflict(ctx, requestID, nil)
	case err != nil:
		return nil, fmt.Errorf("assign request %d: %w", requestID, err)
	}

	s.logger.InfoContext(ctx, "provider assigned by admin",
		"request_id", requestID, "provider_id", providerID, "actor", adminEmail)
	s.notifyAssignment(ctx, updated)

	others := 0
	for _, ip := range updated.InterestedProviders {
		if ip.ProviderID == providerID {
			continue
		}
		if s.notify(ctx, ip.ProviderEmail, func() (alerts.Email, error) { return alerts.AssignedElsewhere(updated, ip.ProviderName) },
			"request_id", requestID, "provider_id", ip.ProviderID, "template", "assignedElsewhere") {
			others++
		}
	}
	s.publish(ctx, model.ActionProviderAssigned, adminEmail, updated)
	return &AssignResult{Request: updated, OthersNotified: others}, nil
}

// AdminRejectInterest removes a provider from the interest list. Emptying the
// list of an interested request puts it back to broadcasted.
func (s *Service) AdminRejectInterest(ctx context.Context, requestID, providerID int64, adminEmail string) (*model.ServiceRequest, error) {
	if strings.TrimSpace(adminEmail) == "" {
		return nil, ErrMissingActor
	}

	for range s.retries {
		r, err := s.getRequest(ctx, requestID)
		if err != nil {
			return nil, err
		}
		idx := r.InterestIndex(providerID)
		if idx < 0 {
			return nil, fmt.Errorf("provider %d is not interested in request %d: %w", providerID, requestID, ErrNotFound)
		}

		now := s.now()
		remaining := slices.Delete(slices.Clone(r.InterestedProviders), idx, idx+1)
		patch := store.Patch{
			Interested:    remaining,
			SetInterested: true,
			Audit: []model.AuditEntry{model.NewAuditEntry(model.ActionProviderRejected, adminEmail, &providerID,
				r.InterestedProviders[idx].ProviderName, now)},
		}
		if len(remaining) == 0 && r.Status == model.StatusInterested {
			patch.Status = ptr(model.StatusBroadcasted)
		}
		updated, err := s.requests.UpdateIf(ctx, requestID, store.Guard{Version: r.Version}, patch)
		if errors.Is(err, store.ErrGuardFailed) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reject interest on request %d: %w", requestID, err)
		}

		s.logger.InfoContext(ctx, "interest rejected",
			"request_id", requestID, "provider_id", providerID, "actor", adminEmail, "remaining", len(remaining))
		s.publish(ctx, model.ActionProviderRejected, adminEmail, updated)
		return updated, nil
	}
	return nil, errRetriesSpent
}
