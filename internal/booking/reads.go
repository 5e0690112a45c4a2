package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/store"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type ListFilter struct {
	Status        model.Status
	ProviderID    *int64
	CustomerEmail string
	Limit         int
}

func (s *Service) Get(ctx context.Context, requestID int64) (*model.ServiceRequest, error) {
	return s.getRequest(ctx, requestID)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]model.ServiceRequest, error) {
	sf := store.RequestFilter{
		ProviderID:    f.ProviderID,
		CustomerEmail: strings.ToLower(strings.TrimSpace(f.CustomerEmail)),
		Limit:         f.Limit,
	}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, fmt.Errorf("unknown status %q: %w", f.Status, ErrInvalidInput)
		}
		sf.Statuses = []model.Status{f.Status}
	}
	switch {
	case sf.Limit <= 0:
		sf.Limit = defaultListLimit
	case sf.Limit > maxListLimit:
		sf.Limit = maxListLimit
	}
	out, err := s.requests.ListRequests(ctx, sf)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return out, nil
}

// OpenRequest is a request as shown to a provider browsing for work.
// Customer contact details stay hidden until assignment.
type OpenRequest struct {
	RequestID           int64               `json:"request_id"`
	Status              model.Status        `json:"status"`
	CustomerName        string              `json:"customer_name"`
	CustomerAddress     string              `json:"customer_address"`
	PreferredDate       string              `json:"preferred_date"`
	PreferredTime       string              `json:"preferred_time"`
	ServiceItems        []model.ServiceItem `json:"service_items"`
	SpecialInstructions string              `json:"special_instructions,omitempty"`
	ProviderPayout      string              `json:"total_provider_payout"`
	InterestCount       int                 `json:"interest_count"`
	AlreadyInterested   bool                `json:"already_interested"`
}

// Available lists unassigned requests a provider can still act on.
func (s *Service) Available(ctx context.Context, providerID int64) ([]OpenRequest, error) {
	rs, err := s.requests.ListRequests(ctx, store.RequestFilter{Statuses: openStatuses, UnassignedOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list available requests: %w", err)
	}
	out := make([]OpenRequest, 0, len(rs))
	for i := range rs {
		r := &rs[i]
		out = append(out, OpenRequest{
			RequestID:           r.RequestID,
			Status:              r.Status,
			CustomerName:        r.CustomerName,
			CustomerAddress:     r.CustomerAddress,
			PreferredDate:       r.PreferredDate,
			PreferredTime:       r.PreferredTime,
			ServiceItems:        r.ServiceItems,
			SpecialInstructions: r.SpecialInstructions,
			ProviderPayout:      r.TotalProviderPayout.StringFixed(2),
			InterestCount:       len(r.InterestedProviders),
			AlreadyInterested:   r.InterestIndex(providerID) >= 0,
		})
	}
	return out, nil
}

// Assigned lists the requests held by a provider.
func (s *Service) Assigned(ctx context.Context, providerID int64) ([]model.ServiceRequest, error) {
	return s.List(ctx, ListFilter{ProviderID: &providerID, Limit: maxListLimit})
}

func (s *Service) Stats(ctx context.Context) (*model.RequestStats, error) {
	st, err := s.requests.RequestStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("request stats: %w", err)
	}
	return st, nil
}
