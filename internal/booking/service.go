// Package booking implements the service request lifecycle: creation,
// broadcast, provider interest, acceptance, admin assignment and status
// changes. Every state change is a single guarded store write; emails and
// events follow the write and never undo it.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sudo-init-do/homeswift/internal/alerts"
	"github.com/sudo-init-do/homeswift/internal/events"
	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/pricing"
	"github.com/sudo-init-do/homeswift/internal/store"
)

const defaultRetries = 5

type Options struct {
	// AdminAlertEmail receives a notice for every new request. Empty disables it.
	AdminAlertEmail string
	// Retries bounds re-reads after a version guard fails.
	Retries int
	Now     func() time.Time
}

type Service struct {
	requests  store.RequestStore
	providers store.ProviderDirectory
	catalog   *pricing.Catalog
	notifier  alerts.Notifier
	events    events.Publisher
	logger    *slog.Logger

	adminAlert string
	retries    int
	now        func() time.Time
}

func New(requests store.RequestStore, providers store.ProviderDirectory, catalog *pricing.Catalog,
	notifier alerts.Notifier, publisher events.Publisher, logger *slog.Logger, opts Options) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Retries <= 0 {
		opts.Retries = defaultRetries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		requests:   requests,
		providers:  providers,
		catalog:    catalog,
		notifier:   notifier,
		events:     publisher,
		logger:     logger,
		adminAlert: opts.AdminAlertEmail,
		retries:    opts.Retries,
		now:        func() time.Time { return opts.Now().UTC() },
	}
}

func (s *Service) getRequest(ctx context.Context, id int64) (*model.ServiceRequest, error) {
	r, err := s.requests.GetRequest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("request %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load request %d: %w", id, err)
	}
	return r, nil
}

func (s *Service) getProvider(ctx context.Context, id int64) (*model.Provider, error) {
	p, err := s.providers.GetProvider(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("provider %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load provider %d: %w", id, err)
	}
	return p, nil
}

// conflict re-reads a request after a failed guard and explains why the
// write could not apply. caller is the provider attempting the write, if any.
func (s *Service) conflict(ctx context.Context, id int64, caller *int64) error {
	r, err := s.getRequest(ctx, id)
	if err != nil {
		return err
	}
	if r.IsAssigned() {
		return &AssignmentConflict{
			RequestID:       id,
			CurrentProvider: *r.AssignedProviderID,
			ByCaller:        caller != nil && r.AssignedTo(*caller),
		}
	}
	return fmt.Errorf("request %d is %s: %w", id, r.Status, ErrInvalidState)
}

// notify sends one email. Failures are logged and dropped.
func (s *Service) notify(ctx context.Context, to string, render func() (alerts.Email, error), attrs ...any) bool {
	if to == "" {
		return false
	}
	ctx = context.WithoutCancel(ctx)
	email, err := render()
	if err == nil {
		err = s.notifier.Send(ctx, to, email.Subject, email.HTML)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "notification failed", append(attrs, "to", to, "error", err)...)
		return false
	}
	return true
}

func (s *Service) publish(ctx context.Context, action, actor string, r *model.ServiceRequest) {
	ev := events.FromRequest(action, actor, r)
	if err := s.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.WarnContext(ctx, "event publish failed", "request_id", r.RequestID, "event", ev.Type, "error", err)
	}
}

// notifyAssignment emails the assigned provider and the customer.
func (s *Service) notifyAssignment(ctx context.Context, r *model.ServiceRequest) {
	s.notify(ctx, r.ProviderEmail, func() (alerts.Email, error) { return alerts.ProviderAssignment(r) },
		"request_id", r.RequestID, "template", "providerAssignment")
	s.notify(ctx, r.CustomerEmail, func() (alerts.Email, error) { return alerts.CustomerProviderDetails(r) },
		"request_id", r.RequestID, "template", "customerProviderDetails")
}

func ptr[T any](v T) *T { return &v }
