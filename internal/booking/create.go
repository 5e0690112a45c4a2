package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sudo-init-do/homeswift/internal/alerts"
	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/pricing"
	"github.com/sudo-init-do/homeswift/internal/store"
)

// validate applies the same email rule as request binding.
var validate = validator.New(validator.WithRequiredStructEnabled())

type CreateInput struct {
	CustomerID          *string
	CustomerName        string
	CustomerEmail       string
	CustomerPhone       string
	CustomerAddress     string
	PreferredDate       string
	PreferredTime       string
	SpecialInstructions string
	PaymentMethod       string
	Items               []pricing.Line
}

func (in *CreateInput) normalize() error {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerEmail = strings.ToLower(strings.TrimSpace(in.CustomerEmail))
	in.CustomerAddress = strings.TrimSpace(in.CustomerAddress)

	var problems []string
	if in.CustomerName == "" {
		problems = append(problems, "customer name is required")
	}
	if err := validate.Var(in.CustomerEmail, "required,email"); err != nil {
		problems = append(problems, "customer email is invalid")
	}
	if in.CustomerAddress == "" {
		problems = append(problems, "customer address is required")
	}
	if in.PreferredDate != "" {
		if _, err := time.Parse(time.DateOnly, in.PreferredDate); err != nil {
			problems = append(problems, "preferred date must be YYYY-MM-DD")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// CreateRequest prices the items and stores a new pending request.
func (s *Service) CreateRequest(ctx context.Context, in CreateInput) (*model.ServiceRequest, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	quote, err := s.catalog.Quote(in.Items)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.now()
	r := &model.ServiceRequest{
		Status:                model.StatusPending,
		CustomerID:            in.CustomerID,
		CustomerName:          in.CustomerName,
		CustomerEmail:         in.CustomerEmail,
		CustomerPhone:         in.CustomerPhone,
		CustomerAddress:       in.CustomerAddress,
		PreferredDate:         in.PreferredDate,
		PreferredTime:         in.PreferredTime,
		SpecialInstructions:   in.SpecialInstructions,
		PaymentMethod:         in.PaymentMethod,
		ServiceItems:          quote.Items,
		TotalCustomerPaid:     quote.CustomerTotal,
		TotalProviderPayout:   quote.ProviderPayout,
		TotalCommissionEarned: quote.Commission,
		Priority:              "normal",
		InterestedProviders:   []model.InterestedProvider{},
		AuditLog: []model.AuditEntry{
			model.NewAuditEntry(model.ActionRequestCreated, in.CustomerEmail, nil,
				fmt.Sprintf("%d item(s), total %s", len(quote.Items), quote.CustomerTotal.StringFixed(2)), now),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.requests.CreateRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.logger.InfoContext(ctx, "service request created",
		"request_id", r.RequestID, "actor", r.CustomerEmail, "total", r.TotalCustomerPaid.StringFixed(2))

	s.notify(ctx, r.CustomerEmail, func() (alerts.Email, error) { return alerts.CustomerConfirmation(r) },
		"request_id", r.RequestID, "template", "customerConfirmation")
	s.notify(ctx, s.adminAlert, func() (alerts.Email, error) { return alerts.AdminAlert(r) },
		"request_id", r.RequestID, "template", "adminAlert")
	s.publish(ctx, model.ActionRequestCreated, r.CustomerEmail, r)
	return r, nil
}

// Broadcast opens a pending request to providers.
func (s *Service) Broadcast(ctx context.Context, requestID int64, adminEmail string) (*model.ServiceRequest, error) {
	if strings.TrimSpace(adminEmail) == "" {
		return nil, ErrMissingActor
	}
	now := s.now()
	updated, err := s.requests.UpdateIf(ctx, requestID,
		store.Guard{Statuses: []model.Status{model.StatusPending}, Unassigned: true},
		store.Patch{
			Status: ptr(model.StatusBroadcasted),
			Audit:  []model.AuditEntry{model.NewAuditEntry(model.ActionRequestBroadcasted, adminEmail, nil, "", now)},
		})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("request %d: %w", requestID, ErrNotFound)
	case errors.Is(err, store.ErrGuardFailed):
		return nil, s.conflict(ctx, requestID, nil)
	case err != nil:
		return nil, fmt.Errorf("broadcast request %d: %w", requestID, err)
	}

	s.logger.InfoContext(ctx, "request broadcasted", "request_id", requestID, "actor", adminEmail)
	s.publish(ctx, model.ActionRequestBroadcasted, adminEmail, updated)
	return updated, nil
}
