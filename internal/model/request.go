package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusBroadcasted Status = "broadcasted"
	StatusInterested  Status = "interested"
	StatusAssigned    Status = "assigned"
	StatusConfirmed   Status = "confirmed"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending, StatusBroadcasted, StatusInterested, StatusAssigned,
	StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled,
}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further status change is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// OpenForInterest reports whether providers may still signal interest.
func (s Status) OpenForInterest() bool {
	return s == StatusPending || s == StatusBroadcasted || s == StatusInterested
}

// InterestedProvider is a snapshot of a provider taken when they showed interest.
type InterestedProvider struct {
	ProviderID     int64     `json:"provider_id" bson:"provider_id"`
	ProviderName   string    `json:"provider_name" bson:"provider_name"`
	ProviderEmail  string    `json:"provider_email" bson:"provider_email"`
	ProviderPhone  string    `json:"provider_phone" bson:"provider_phone"`
	ProviderRating float64   `json:"provider_rating" bson:"provider_rating"`
	AcceptedAt     time.Time `json:"accepted_at" bson:"accepted_at"`
}

// ServiceItem is one priced line of a request, copied from the catalog at creation.
type ServiceItem struct {
	Category        string          `json:"category" bson:"category"`
	ServiceType     string          `json:"service_type" bson:"service_type"`
	ItemDescription string          `json:"item_description" bson:"item_description"`
	Quantity        int             `json:"quantity" bson:"quantity"`
	White           bool            `json:"white" bson:"white"`
	CustomerPrice   decimal.Decimal `json:"customer_price" bson:"customer_price"`
	ProviderPrice   decimal.Decimal `json:"provider_price" bson:"provider_price"`
}

type ServiceRequest struct {
	RequestID int64  `json:"request_id" bson:"_id"`
	Status    Status `json:"status" bson:"status"`

	AssignedProviderID *int64 `json:"assigned_provider_id" bson:"assigned_provider_id"`
	ProviderName       string `json:"provider_name,omitempty" bson:"provider_name"`
	ProviderEmail      string `json:"provider_email,omitempty" bson:"provider_email"`
	ProviderPhone      string `json:"provider_phone,omitempty" bson:"provider_phone"`
	AssignedBy         string `json:"assigned_by,omitempty" bson:"assigned_by"`

	InterestedProviders []InterestedProvider `json:"interested_providers" bson:"interested_providers"`
	AuditLog            []AuditEntry         `json:"audit_log" bson:"audit_log"`

	CustomerID      *string `json:"customer_id,omitempty" bson:"customer_id"`
	CustomerName    string  `json:"customer_name" bson:"customer_name"`
	CustomerEmail   string  `json:"customer_email" bson:"customer_email"`
	CustomerPhone   string  `json:"customer_phone" bson:"customer_phone"`
	CustomerAddress string  `json:"customer_address" bson:"customer_address"`

	PreferredDate       string        `json:"preferred_date" bson:"preferred_date"`
	PreferredTime       string        `json:"preferred_time" bson:"preferred_time"`
	ServiceItems        []ServiceItem `json:"service_items" bson:"service_items"`
	SpecialInstructions string        `json:"special_instructions,omitempty" bson:"special_instructions"`

	TotalCustomerPaid     decimal.Decimal `json:"total_customer_paid" bson:"total_customer_paid"`
	TotalProviderPayout   decimal.Decimal `json:"total_provider_payout" bson:"total_provider_payout"`
	TotalCommissionEarned decimal.Decimal `json:"total_commission_earned" bson:"total_commission_earned"`

	Priority                string `json:"priority" bson:"priority"`
	AdminNotes              string `json:"admin_notes,omitempty" bson:"admin_notes"`
	PaymentMethod           string `json:"payment_method,omitempty" bson:"payment_method"`
	ProofOfPaymentURL       string `json:"proof_of_payment_url,omitempty" bson:"proof_of_payment_url"`
	CustomerPaymentReceived bool   `json:"customer_payment_received" bson:"customer_payment_received"`
	ProviderPaymentMade     bool   `json:"provider_payment_made" bson:"provider_payment_made"`
	CommissionCollected     bool   `json:"commission_collected" bson:"commission_collected"`

	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
	ConfirmedAt *time.Time `json:"confirmed_at" bson:"confirmed_at"`
	AssignedAt  *time.Time `json:"assigned_at" bson:"assigned_at"`
	CompletedAt *time.Time `json:"completed_at" bson:"completed_at"`

	Version int64 `json:"version" bson:"version"`
}

func (r *ServiceRequest) IsAssigned() bool {
	return r.AssignedProviderID != nil
}

// AssignedTo reports whether the request is held by providerID.
func (r *ServiceRequest) AssignedTo(providerID int64) bool {
	return r.AssignedProviderID != nil && *r.AssignedProviderID == providerID
}

// InterestIndex returns the position of providerID in the interest list, or -1.
func (r *ServiceRequest) InterestIndex(providerID int64) int {
	for i, p := range r.InterestedProviders {
		if p.ProviderID == providerID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy safe to mutate without touching r.
func (r *ServiceRequest) Clone() *ServiceRequest {
	c := *r
	c.AssignedProviderID = cloneInt64(r.AssignedProviderID)
	c.CustomerID = cloneString(r.CustomerID)
	c.ConfirmedAt = cloneTime(r.ConfirmedAt)
	c.AssignedAt = cloneTime(r.AssignedAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	c.InterestedProviders = append([]InterestedProvider{}, r.InterestedProviders...)
	c.AuditLog = append([]AuditEntry{}, r.AuditLog...)
	c.ServiceItems = append([]ServiceItem{}, r.ServiceItems...)
	for i := range c.AuditLog {
		c.AuditLog[i].ProviderID = cloneInt64(c.AuditLog[i].ProviderID)
	}
	return &c
}

// RequestStats aggregates request counts and completed-job money.
type RequestStats struct {
	Total      int             `json:"total"`
	ByStatus   map[Status]int  `json:"by_status"`
	Revenue    decimal.Decimal `json:"revenue"`
	Commission decimal.Decimal `json:"commission"`
	Payouts    decimal.Decimal `json:"payouts"`
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
