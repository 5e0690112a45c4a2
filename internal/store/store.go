package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/sudo-init-do/homeswift/internal/model"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrGuardFailed = errors.New("write guard failed")
	ErrDuplicate   = errors.New("duplicate record")
)

// Guard is the precondition a conditional write checks against the stored row
// at write time. Zero fields are unchecked.
type Guard struct {
	Statuses   []model.Status
	Unassigned bool
	Version    int64
}

// Allows evaluates the guard against r.
func (g Guard) Allows(r *model.ServiceRequest) bool {
	if len(g.Statuses) > 0 && !slices.Contains(g.Statuses, r.Status) {
		return false
	}
	if g.Unassigned && r.IsAssigned() {
		return false
	}
	if g.Version != 0 && r.Version != g.Version {
		return false
	}
	return true
}

// Assignment binds a provider to a request and copies their contact fields.
type Assignment struct {
	ProviderID int64
	Name       string
	Email      string
	Phone      string
	AssignedBy string
}

// AdminFields are the operational fields admins may edit on any request.
type AdminFields struct {
	Priority                *string
	AdminNotes              *string
	PaymentMethod           *string
	ProofOfPaymentURL       *string
	CustomerPaymentReceived *bool
	ProviderPaymentMade     *bool
	CommissionCollected     *bool
}

func (a *AdminFields) Empty() bool {
	return a == nil || (a.Priority == nil && a.AdminNotes == nil && a.PaymentMethod == nil &&
		a.ProofOfPaymentURL == nil && a.CustomerPaymentReceived == nil &&
		a.ProviderPaymentMade == nil && a.CommissionCollected == nil)
}

// Patch describes one write. Audit entries are appended, never replaced.
// ConfirmedAt, AssignedAt and CompletedAt only fill an empty column.
type Patch struct {
	Status        *model.Status
	Assign        *Assignment
	Interested    []model.InterestedProvider
	SetInterested bool
	Audit         []model.AuditEntry
	ConfirmedAt   *time.Time
	AssignedAt    *time.Time
	CompletedAt   *time.Time
	Admin         *AdminFields
}

// Apply mutates r the way every backend applies p, bumping version.
func (p Patch) Apply(r *model.ServiceRequest, now time.Time) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Assign != nil {
		id := p.Assign.ProviderID
		r.AssignedProviderID = &id
		r.ProviderName = p.Assign.Name
		r.ProviderEmail = p.Assign.Email
		r.ProviderPhone = p.Assign.Phone
		if p.Assign.AssignedBy != "" {
			r.AssignedBy = p.Assign.AssignedBy
		}
	}
	if p.SetInterested {
		r.InterestedProviders = append([]model.InterestedProvider{}, p.Interested...)
	}
	r.AuditLog = append(r.AuditLog, p.Audit...)
	r.ConfirmedAt = firstWrite(r.ConfirmedAt, p.ConfirmedAt)
	r.AssignedAt = firstWrite(r.AssignedAt, p.AssignedAt)
	r.CompletedAt = firstWrite(r.CompletedAt, p.CompletedAt)
	if !p.Admin.Empty() {
		a := p.Admin
		setString(&r.Priority, a.Priority)
		setString(&r.AdminNotes, a.AdminNotes)
		setString(&r.PaymentMethod, a.PaymentMethod)
		setString(&r.ProofOfPaymentURL, a.ProofOfPaymentURL)
		setBool(&r.CustomerPaymentReceived, a.CustomerPaymentReceived)
		setBool(&r.ProviderPaymentMade, a.ProviderPaymentMade)
		setBool(&r.CommissionCollected, a.CommissionCollected)
	}
	r.UpdatedAt = now
	r.Version++
}

type RequestFilter struct {
	Statuses       []model.Status
	ProviderID     *int64
	CustomerEmail  string
	UnassignedOnly bool
	Limit          int
}

// RequestStore persists service requests. UpdateIf is the only mutation
// after creation and must evaluate the guard atomically with the write.
type RequestStore interface {
	CreateRequest(ctx context.Context, r *model.ServiceRequest) error
	GetRequest(ctx context.Context, id int64) (*model.ServiceRequest, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]model.ServiceRequest, error)
	UpdateIf(ctx context.Context, id int64, g Guard, p Patch) (*model.ServiceRequest, error)
	RequestStats(ctx context.Context) (*model.RequestStats, error)
}

type ProviderDirectory interface {
	GetProvider(ctx context.Context, id int64) (*model.Provider, error)
	ListProviders(ctx context.Context, activeOnly bool) ([]model.Provider, error)
	CreateProvider(ctx context.Context, p *model.Provider) error
	// CreateProviderAccount stores a provider and its login user together.
	CreateProviderAccount(ctx context.Context, p *model.Provider, u *model.User) error
}

type UserPatch struct {
	Name  *string
	Email *string
	Phone *string
	Role  *model.Role
}

type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, id string, p UserPatch) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
	SetRoleByEmail(ctx context.Context, email string, role model.Role) error
	SetPassword(ctx context.Context, id, hash string) error
	CountUsers(ctx context.Context) (int, error)
}

type ComplaintPatch struct {
	Status     *model.ComplaintStatus
	AdminNotes *string
}

type ComplaintStore interface {
	CreateComplaint(ctx context.Context, c *model.Complaint) error
	ListComplaints(ctx context.Context, status model.ComplaintStatus) ([]model.Complaint, error)
	UpdateComplaint(ctx context.Context, id int64, p ComplaintPatch) (*model.Complaint, error)
}

// Store is everything the API needs from a backend.
type Store interface {
	RequestStore
	ProviderDirectory
	UserStore
	ComplaintStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// applyComplaintPatch sets resolved_at the first time a complaint is resolved or closed.
func applyComplaintPatch(c *model.Complaint, p ComplaintPatch, now time.Time) {
	if p.Status != nil {
		c.Status = *p.Status
		if (c.Status == model.ComplaintResolved || c.Status == model.ComplaintClosed) && c.ResolvedAt == nil {
			t := now
			c.ResolvedAt = &t
		}
	}
	if p.AdminNotes != nil {
		c.AdminNotes = *p.AdminNotes
	}
	c.UpdatedAt = now
}

func firstWrite(cur, next *time.Time) *time.Time {
	if cur != nil || next == nil {
		return cur
	}
	t := next.UTC()
	return &t
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
