package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/homeswift/internal/model"
)

// MemoryStore implements Store in process memory. Every guarded write runs
// under a single mutex, which makes UpdateIf a true compare-and-set.
type MemoryStore struct {
	mu         sync.RWMutex
	requests   map[int64]*model.ServiceRequest
	providers  map[int64]*model.Provider
	users      map[string]*model.User
	complaints map[int64]*model.Complaint

	nextRequest   int64
	nextProvider  int64
	nextComplaint int64

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:   make(map[int64]*model.ServiceRequest),
		providers:  make(map[int64]*model.Provider),
		users:      make(map[string]*model.User),
		complaints: make(map[int64]*model.Complaint),
		now:        time.Now,
	}
}

func (s *MemoryStore) Ping(context.Context) error  { return nil }
func (s *MemoryStore) Close(context.Context) error { return nil }

// Requests

func (s *MemoryStore) CreateRequest(_ context.Context, r *model.ServiceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.RequestID == 0 {
		s.nextRequest++
		r.RequestID = s.nextRequest
	} else {
		if _, ok := s.requests[r.RequestID]; ok {
			return ErrDuplicate
		}
		if r.RequestID > s.nextRequest {
			s.nextRequest = r.RequestID
		}
	}
	now := s.now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Version == 0 {
		r.Version = 1
	}
	if r.InterestedProviders == nil {
		r.InterestedProviders = []model.InterestedProvider{}
	}
	if r.AuditLog == nil {
		r.AuditLog = []model.AuditEntry{}
	}
	s.requests[r.RequestID] = r.Clone()
	return nil
}

func (s *MemoryStore) GetRequest(_ context.Context, id int64) (*model.ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) ListRequests(_ context.Context, f RequestFilter) ([]model.ServiceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ServiceRequest, 0)
	for _, r := range s.requests {
		if !matchesFilter(r, f) {
			continue
		}
		out = append(out, *r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestID > out[j].RequestID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matchesFilter(r *model.ServiceRequest, f RequestFilter) bool {
	if len(f.Statuses) > 0 && !(Guard{Statuses: f.Statuses}).Allows(r) {
		return false
	}
	if f.ProviderID != nil && !r.AssignedTo(*f.ProviderID) {
		return false
	}
	if f.CustomerEmail != "" && !strings.EqualFold(r.CustomerEmail, f.CustomerEmail) {
		return false
	}
	if f.UnassignedOnly && r.IsAssigned() {
		return false
	}
	return true
}

func (s *MemoryStore) UpdateIf(_ context.Context, id int64, g Guard, p Patch) (*model.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !g.Allows(r) {
		return nil, ErrGuardFailed
	}
	next := r.Clone()
	p.Apply(next, s.now().UTC())
	s.requests[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) RequestStats(_ context.Context) (*model.RequestStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &model.RequestStats{ByStatus: make(map[model.Status]int)}
	for _, r := range s.requests {
		st.Total++
		st.ByStatus[r.Status]++
		if r.Status == model.StatusCompleted {
			st.Revenue = st.Revenue.Add(r.TotalCustomerPaid)
			st.Commission = st.Commission.Add(r.TotalCommissionEarned)
			st.Payouts = st.Payouts.Add(r.TotalProviderPayout)
		}
	}
	return st, nil
}

// Providers

func (s *MemoryStore) GetProvider(_ context.Context, id int64) (*model.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *MemoryStore) ListProviders(_ context.Context, activeOnly bool) ([]model.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateProvider(_ context.Context, p *model.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertProvider(p)
}

func (s *MemoryStore) insertProvider(p *model.Provider) error {
	for _, existing := range s.providers {
		if strings.EqualFold(existing.Email, p.Email) {
			return ErrDuplicate
		}
	}
	if p.ID == 0 {
		s.nextProvider++
		p.ID = s.nextProvider
	} else if _, ok := s.providers[p.ID]; ok {
		return ErrDuplicate
	} else if p.ID > s.nextProvider {
		s.nextProvider = p.ID
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	c := *p
	s.providers[p.ID] = &c
	return nil
}

func (s *MemoryStore) CreateProviderAccount(_ context.Context, p *model.Provider, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userByEmail(u.Email) != nil {
		return ErrDuplicate
	}
	if err := s.insertProvider(p); err != nil {
		return err
	}
	u.ProviderID = &p.ID
	u.Role = model.RoleProvider
	return s.insertUser(u)
}

// Users

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userByEmail(u.Email) != nil {
		return ErrDuplicate
	}
	return s.insertUser(u)
}

func (s *MemoryStore) insertUser(u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	now := s.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	c := *u
	s.users[u.ID] = &c
	return nil
}

func (s *MemoryStore) userByEmail(email string) *model.User {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u := s.userByEmail(email)
	if u == nil {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, id string, p UserPatch) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Email != nil {
		if other := s.userByEmail(*p.Email); other != nil && other.ID != id {
			return nil, ErrDuplicate
		}
	}
	setString(&u.Name, p.Name)
	setString(&u.Email, p.Email)
	setString(&u.Phone, p.Phone)
	if p.Role != nil {
		u.Role = *p.Role
	}
	u.UpdatedAt = s.now().UTC()
	c := *u
	return &c, nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryStore) SetRoleByEmail(_ context.Context, email string, role model.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.userByEmail(email)
	if u == nil {
		return ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) SetPassword(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// Complaints

func (s *MemoryStore) CreateComplaint(_ context.Context, c *model.Complaint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextComplaint++
	c.ID = s.nextComplaint
	if c.Status == "" {
		c.Status = model.ComplaintPending
	}
	now := s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	cp := *c
	s.complaints[c.ID] = &cp
	return nil
}

func (s *MemoryStore) ListComplaints(_ context.Context, status model.ComplaintStatus) ([]model.Complaint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Complaint, 0)
	for _, c := range s.complaints {
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateComplaint(_ context.Context, id int64, p ComplaintPatch) (*model.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.complaints[id]
	if !ok {
		return nil, ErrNotFound
	}
	applyComplaintPatch(c, p, s.now().UTC())
	cp := *c
	return &cp, nil
}
