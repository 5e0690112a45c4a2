package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/homeswift/internal/events"
	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/pricing"
	"github.com/sudo-init-do/homeswift/internal/store"
)

const admin = "admin@x"

type email struct {
	to, subject string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []email
	fail map[string]bool
}

func (n *fakeNotifier) Send(_ context.Context, to, subject, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, email{to, subject})
	if n.fail[to] {
		return errors.New("mailbox unavailable")
	}
	return nil
}

func (n *fakeNotifier) emails() []email {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]email(nil), n.sent...)
}

func (n *fakeNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}

func (n *fakeNotifier) to(addr string) []string {
	var subjects []string
	for _, e := range n.emails() {
		if e.to == addr {
			subjects = append(subjects, e.subject)
		}
	}
	return subjects
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	svc      *Service
	store    *store.MemoryStore
	notifier *fakeNotifier
	events   *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := pricing.Load()
	require.NoError(t, err)
	f := &fixture{
		store:    store.NewMemoryStore(),
		notifier: &fakeNotifier{fail: map[string]bool{}},
		events:   &fakePublisher{},
	}
	f.svc = New(f.store, f.store, catalog, f.notifier, f.events,
		slog.New(slog.NewTextHandler(io.Discard, nil)), Options{AdminAlertEmail: "ops@homeswift.test"})
	return f
}

func (f *fixture) provider(t *testing.T, id int64) *model.Provider {
	t.Helper()
	p := &model.Provider{
		ID:     id,
		Name:   "Provider " + strconv.FormatInt(id, 10),
		Email:  "p" + strconv.FormatInt(id, 10) + "@pros.test",
		Phone:  "555-01" + strconv.FormatInt(id, 10),
		Rating: 4.5,
		Active: true,
	}
	require.NoError(t, f.store.CreateProvider(context.Background(), p))
	return p
}

func (f *fixture) request(t *testing.T, id int64, status model.Status) *model.ServiceRequest {
	t.Helper()
	r := &model.ServiceRequest{
		RequestID:         id,
		Status:            status,
		CustomerName:      "Cara",
		CustomerEmail:     "cara@example.com",
		CustomerAddress:   "1 Long St",
		PreferredDate:     "2024-05-01",
		TotalCustomerPaid: decimal.RequireFromString("440"),
	}
	require.NoError(t, f.store.CreateRequest(context.Background(), r))
	return r
}

func (f *fixture) get(t *testing.T, id int64) *model.ServiceRequest {
	t.Helper()
	r, err := f.store.GetRequest(context.Background(), id)
	require.NoError(t, err)
	return r
}

func actions(r *model.ServiceRequest) []string {
	out := make([]string, len(r.AuditLog))
	for i, e := range r.AuditLog {
		out[i] = e.Action
	}
	return out
}

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.CreateRequest(ctx, CreateInput{
		CustomerName:    " Cara ",
		CustomerEmail:   "Cara@Example.com",
		CustomerAddress: "1 Long St",
		PreferredDate:   "2024-05-01",
		PreferredTime:   "09:00",
		Items: []pricing.Line{
			{Category: "Couch Deep Cleaning", ServiceType: "2 Seater Couch", Quantity: 1, White: true},
		},
	})
	require.NoError(t, err)

	assert.NotZero(t, r.RequestID)
	assert.Equal(t, model.StatusPending, r.Status)
	assert.Equal(t, "cara@example.com", r.CustomerEmail)
	assert.Equal(t, "Cara", r.CustomerName)
	assert.True(t, decimal.RequireFromString("660").Equal(r.TotalCustomerPaid), r.TotalCustomerPaid.String())
	assert.True(t, decimal.RequireFromString("594").Equal(r.TotalProviderPayout))
	assert.True(t, decimal.RequireFromString("66").Equal(r.TotalCommissionEarned))
	assert.Nil(t, r.AssignedProviderID)

	stored := f.get(t, r.RequestID)
	assert.Equal(t, []string{model.ActionRequestCreated}, actions(stored))
	require.Len(t, stored.ServiceItems, 1)

	assert.Len(t, f.notifier.to("cara@example.com"), 1)
	assert.Len(t, f.notifier.to("ops@homeswift.test"), 1)
	assert.Equal(t, []string{model.ActionRequestCreated}, f.events.types())
}

func TestCreateRequestRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	valid := CreateInput{
		CustomerName: "Cara", CustomerEmail: "cara@example.com", CustomerAddress: "1 Long St",
		Items: []pricing.Line{{Category: "Couch Deep Cleaning", ServiceType: "1 Seater Couch", Quantity: 1}},
	}

	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing name", func(in *CreateInput) { in.CustomerName = "  " }},
		{"bad email", func(in *CreateInput) { in.CustomerEmail = "not-an-email" }},
		{"display name email", func(in *CreateInput) { in.CustomerEmail = "Cara <cara@example.com>" }},
		{"missing address", func(in *CreateInput) { in.CustomerAddress = "" }},
		{"bad date", func(in *CreateInput) { in.PreferredDate = "01/05/2024" }},
		{"no items", func(in *CreateInput) { in.Items = nil }},
		{"unknown item", func(in *CreateInput) { in.Items = []pricing.Line{{Category: "Roof", ServiceType: "Big", Quantity: 1}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := f.svc.CreateRequest(ctx, in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Empty(t, f.notifier.emails())
}

func TestBroadcast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.request(t, 1, model.StatusPending)

	_, err := f.svc.Broadcast(ctx, 1, "")
	assert.ErrorIs(t, err, ErrMissingActor)

	r, err := f.svc.Broadcast(ctx, 1, admin)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBroadcasted, r.Status)
	assert.Equal(t, []string{model.ActionRequestBroadcasted}, actions(r))

	_, err = f.svc.Broadcast(ctx, 1, admin)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.Broadcast(ctx, 99, admin)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShowInterest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.provider(t, 5)
	f.request(t, 1, model.StatusBroadcasted)

	r, err := f.svc.ShowInterest(ctx, 1, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInterested, r.Status)
	require.Len(t, r.InterestedProviders, 1)
	ip := r.InterestedProviders[0]
	assert.Equal(t, p.ID, ip.ProviderID)
	assert.Equal(t, p.Name, ip.ProviderName)
	assert.Equal(t, p.Email, ip.ProviderEmail)
	assert.Equal(t, p.Rating, ip.ProviderRating)
	assert.False(t, ip.AcceptedAt.IsZero())
	assert.Equal(t, []string{model.ActionProviderInterested}, actions(r))

	_, err = f.svc.ShowInterest(ctx, 1, p.ID)
	assert.ErrorIs(t, err, ErrAlreadyInterested)
	assert.Len(t, f.get(t, 1).InterestedProviders, 1)

	assert.Empty(t, f.notifier.emails(), "interest sends no email")
}

func TestShowInterestFromPending(t *testing.T) {
	f := newFixture(t)
	p := f.provider(t, 5)
	f.request(t, 1, model.StatusPending)

	r, err := f.svc.ShowInterest(context.Background(), 1, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInterested, r.Status)
}

func TestShowInterestNotAvailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.provider(t, 5)
	other := f.provider(t, 6)
	f.request(t, 1, model.StatusPending)
	f.request(t, 2, model.StatusCancelled)
	f.request(t, 3, model.StatusConfirmed)

	_, err := f.svc.AcceptBooking(ctx, 1, other.ID)
	require.NoError(t, err)

	for _, id := range []int64{1, 2, 3} {
		_, err := f.svc.ShowInterest(ctx, id, p.ID)
		assert.ErrorIs(t, err, ErrNotAvailable, "request %d", id)
		assert.ErrorIs(t, err, ErrInvalidState, "request %d", id)
	}

	_, err = f.svc.ShowInterest(ctx, 99, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.ShowInterest(ctx, 1, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentShowInterestKeepsEveryProvider(t *testing.T) {
	f := newFixture(t)
	f.request(t, 1, model.StatusBroadcasted)
	const n = 12
	for i := int64(1); i <= n; i++ {
		f.provider(t, i)
	}
	f.svc.retries = 100

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := int64(1); i <= n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := f.svc.ShowInterest(context.Background(), 1, id); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	r := f.get(t, 1)
	assert.Len(t, r.InterestedProviders, n)
	assert.Len(t, r.AuditLog, n)
	seen := map[int64]bool{}
	for _, ip := range r.InterestedProviders {
		assert.False(t, seen[ip.ProviderID], "duplicate provider %d", ip.ProviderID)
		seen[ip.ProviderID] = true
	}
}

func TestAcceptBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.provider(t, 1)
	f.request(t, 1, model.StatusPending)

	r, err := f.svc.AcceptBooking(ctx, 1, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, r.Status)
	require.NotNil(t, r.AssignedProviderID)
	assert.Equal(t, p.ID, *r.AssignedProviderID)
	assert.Equal(t, p.Name, r.ProviderName)
	assert.Equal(t, p.Email, r.ProviderEmail)
	assert.Equal(t, p.Phone, r.ProviderPhone)
	require.NotNil(t, r.ConfirmedAt)
	assert.Equal(t, []string{model.ActionProviderAccepted}, actions(r))

	assert.Len(t, f.notifier.to(p.Email), 1)
	assert.Len(t, f.notifier.to("cara@example.com"), 1)

	_, err = f.svc.AcceptBooking(ctx, 1, p.ID)
	var conflict *AssignmentConflict
	require.ErrorAs(t, err, &conflict)
	assert.True(t, conflict.ByCaller)
	assert.ErrorIs(t, err, ErrAlreadyAssigned)
}

func TestAcceptBookingRequiresPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.provider(t, 1)
	f.request(t, 1, model.StatusBroadcasted)

	_, err := f.svc.AcceptBooking(ctx, 1, p.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NotErrorIs(t, err, ErrAlreadyAssigned)
	assert.Nil(t, f.get(t, 1).AssignedProviderID)

	_, err = f.svc.AcceptBooking(ctx, 99, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.AcceptBooking(ctx, 1, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

// Request #100: providers 1 and 2 accept at the same time.
func TestScenarioConcurrentAccept(t *testing.T) {
	f := newFixture(t)
	f.provider(t, 1)
	f.provider(t, 2)
	f.request(t, 100, model.StatusPending)

	var wg sync.WaitGroup
	results := make([]error, 3)
	start := make(chan struct{})
	for _, pid := range []int64{1, 2} {
		wg.Add(1)
		go func(pid int64) {
			defer wg.Done()
			<-start
			_, results[pid] = f.svc.AcceptBooking(context.Background(), 100, pid)
		}(pid)
	}
	close(start)
	wg.Wait()

	r := f.get(t, 100)
	require.NotNil(t, r.AssignedProviderID)
	winner := *r.AssignedProviderID
	assert.Contains(t, []int64{1, 2}, winner)
	assert.Equal(t, model.StatusConfirmed, r.Status)

	loser := int64(3) - winner
	assert.NoError(t, results[winner])
	var conflict *AssignmentConflict
	require.ErrorAs(t, results[loser], &conflict)
	assert.False(t, conflict.ByCaller)
	assert.Equal(t, winner, conflict.CurrentProvider)
}

func TestConcurrentAcceptExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	const n = 20
	for i := int64(1); i <= n; i++ {
		f.provider(t, i)
	}
	f.request(t, 1, model.StatusPending)

	var wg sync.WaitGroup
	errs := make([]error, n+1)
	for i := int64(1); i <= n; i++ {
		wg.Add(1)
		go func(pid int64) {
			defer wg.Done()
			_, errs[pid] = f.svc.AcceptBooking(context.Background(), 1, pid)
		}(i)
	}
	wg.Wait()

	wins := 0
	for pid := int64(1); pid <= n; pid++ {
		if errs[pid] == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, errs[pid], ErrAlreadyAssigned, "provider %d", pid)
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, f.get(t, 1).AuditLog, 1)
}

// Request #300: admin assigns provider 7 while 7 and 9 are interested.
func TestScenarioAdminAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p7 := f.provider(t, 7)
	p9 := f.provider(t, 9)
	f.request(t, 300, model.StatusBroadcasted)
	_, err := f.svc.ShowInterest(ctx, 300, 7)
	require.NoError(t, err)
	_, err = f.svc.ShowInterest(ctx, 300, 9)
	require.NoError(t, err)
	f.notifier.reset()

	res, err := f.svc.AdminAssignProvider(ctx, 300, 7, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, res.OthersNotified)

	r := f.get(t, 300)
	assert.Equal(t, model.StatusAssigned, r.Status)
	require.NotNil(t, r.AssignedProviderID)
	assert.Equal(t, int64(7), *r.AssignedProviderID)
	assert.Equal(t, admin, r.AssignedBy)
	require.NotNil(t, r.AssignedAt)

	assigned := 0
	for _, a := range actions(r) {
		if a == model.ActionProviderAssigned {
			assigned++
		}
	}
	assert.Equal(t, 1, assigned)

	require.Len(t, f.notifier.to(p7.Email), 1)
	assert.True(t, strings.HasPrefix(f.notifier.to(p7.Email)[0], "New Service Assignment"))
	require.Len(t, f.notifier.to("cara@example.com"), 1)
	assert.True(t, strings.HasPrefix(f.notifier.to("cara@example.com")[0], "Service Provider Assigned"))
	require.Len(t, f.notifier.to(p9.Email), 1)
	assert.True(t, strings.HasPrefix(f.notifier.to(p9.Email)[0], "Job Assigned Elsewhere"))
}

func TestAdminAssignProviderErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider(t, 1)
	f.provider(t, 2)
	f.request(t, 1, model.StatusPending)

	_, err := f.svc.AdminAssignProvider(ctx, 1, 1, "")
	assert.ErrorIs(t, err, ErrMissingActor)
	_, err = f.svc.AdminAssignProvider(ctx, 1, 404, admin)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.AdminAssignProvider(ctx, 99, 1, admin)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.AdminAssignProvider(ctx, 1, 1, admin)
	require.NoError(t, err)
	_, err = f.svc.AdminAssignProvider(ctx, 1, 2, admin)
	var conflict *AssignmentConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(1), conflict.CurrentProvider)
}

func TestAdminAssignIgnoresCurrentStatus(t *testing.T) {
	for _, st := range []model.Status{model.StatusCancelled, model.StatusCompleted, model.StatusInProgress} {
		t.Run(string(st), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			p := f.provider(t, 7)
			f.request(t, 300, st)

			res, err := f.svc.AdminAssignProvider(ctx, 300, 7, admin)
			require.NoError(t, err)
			assert.Equal(t, model.StatusAssigned, res.Request.Status)
			require.NotNil(t, res.Request.AssignedProviderID)
			assert.Equal(t, int64(7), *res.Request.AssignedProviderID)
			assert.Equal(t, admin, res.Request.AssignedBy)
			assert.Len(t, f.notifier.to(p.Email), 1)

			_, err = f.svc.AdminAssignProvider(ctx, 300, 7, admin)
			var conflict *AssignmentConflict
			require.ErrorAs(t, err, &conflict)
			assert.True(t, conflict.ByCaller)
		})
	}
}

func TestAdminAssignSurvivesNotifierFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.provider(t, 1)
	p2 := f.provider(t, 2)
	p3 := f.provider(t, 3)
	f.request(t, 1, model.StatusBroadcasted)
	for _, id := range []int64{1, 2, 3} {
		_, err := f.svc.ShowInterest(ctx, 1, id)
		require.NoError(t, err)
	}
	f.notifier.fail[p1.Email] = true
	f.notifier.fail[p2.Email] = true

	res, err := f.svc.AdminAssignProvider(ctx, 1, 1, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, res.OthersNotified)
	assert.Len(t, f.notifier.to(p2.Email), 1, "failed send still attempted")
	assert.Len(t, f.notifier.to(p3.Email), 1)
	assert.Equal(t, model.StatusAssigned, f.get(t, 1).Status)
}

// Request #200: provider 5 shows interest, then admin rejects it.
func TestScenarioRejectLastInterest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider(t, 5)
	f.request(t, 200, model.StatusBroadcasted)

	r, err := f.svc.ShowInterest(ctx, 200, 5)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInterested, r.Status)
	require.Len(t, r.InterestedProviders, 1)

	r, err = f.svc.AdminRejectInterest(ctx, 200, 5, admin)
	require.NoError(t, err)
	assert.Empty(t, r.InterestedProviders)
	assert.Equal(t, model.StatusBroadcasted, r.Status)
	assert.Equal(t, []string{model.ActionProviderInterested, model.ActionProviderRejected}, actions(r))
	assert.Equal(t, admin, r.AuditLog[1].Actor)
}

func TestAdminRejectInterest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider(t, 1)
	f.provider(t, 2)
	f.request(t, 1, model.StatusBroadcasted)
	_, err := f.svc.ShowInterest(ctx, 1, 1)
	require.NoError(t, err)
	_, err = f.svc.ShowInterest(ctx, 1, 2)
	require.NoError(t, err)

	_, err = f.svc.AdminRejectInterest(ctx, 1, 1, "")
	assert.ErrorIs(t, err, ErrMissingActor)
	_, err = f.svc.AdminRejectInterest(ctx, 1, 3, admin)
	assert.ErrorIs(t, err, ErrNotFound)

	r, err := f.svc.AdminRejectInterest(ctx, 1, 1, admin)
	require.NoError(t, err)
	require.Len(t, r.InterestedProviders, 1)
	assert.Equal(t, int64(2), r.InterestedProviders[0].ProviderID)
	assert.Equal(t, model.StatusInterested, r.Status)
}

func TestUpdateStatusSameStatusIsQuiet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.provider(t, 1)
	f.request(t, 1, model.StatusPending)
	_, err := f.svc.AcceptBooking(ctx, 1, p.ID)
	require.NoError(t, err)
	before := f.get(t, 1)
	f.notifier.reset()

	notes := "gate code 1234"
	r, err := f.svc.UpdateStatus(ctx, 1, model.StatusConfirmed, StatusChange{Actor: admin, Admin: store.AdminFields{AdminNotes: &notes}})
	require.NoError(t, err)

	assert.Empty(t, f.notifier.emails())
	assert.Equal(t, "gate code 1234", r.AdminNotes)
	assert.Equal(t, before.ConfirmedAt, r.ConfirmedAt)
	assert.Equal(t, before.CompletedAt, r.CompletedAt)
	assert.Equal(t, before.AssignedAt, r.AssignedAt)
	assert.Equal(t, actions(before), actions(r))
}

func TestUpdateStatusEmptyKeepsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.request(t, 1, model.StatusBroadcasted)

	prio := "urgent"
	paid := true
	r, err := f.svc.UpdateStatus(ctx, 1, "", StatusChange{Actor: admin, Admin: store.AdminFields{Priority: &prio, CustomerPaymentReceived: &paid}})
	require.NoError(t, err)
	assert.Equal(t, model.StatusBroadcasted, r.Status)
	assert.Equal(t, "urgent", r.Priority)
	assert.True(t, r.CustomerPaymentReceived)
	assert.Empty(t, f.notifier.emails())
	assert.NotContains(t, actions(r), model.ActionStatusUpdated)

	unchanged, err := f.svc.UpdateStatus(ctx, 1, "", StatusChange{Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, r.Version, unchanged.Version)
}

func TestUpdateStatusCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.provider(t, 1)
	f.request(t, 1, model.StatusPending)
	_, err := f.svc.AcceptBooking(ctx, 1, p.ID)
	require.NoError(t, err)
	f.notifier.reset()

	r, err := f.svc.UpdateStatus(ctx, 1, model.StatusInProgress, StatusChange{Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, r.Status)
	require.Len(t, f.notifier.to("cara@example.com"), 1)
	assert.True(t, strings.HasPrefix(f.notifier.to("cara@example.com")[0], "Booking Status Update"))

	r, err = f.svc.UpdateStatus(ctx, 1, model.StatusCompleted, StatusChange{Actor: admin})
	require.NoError(t, err)
	require.NotNil(t, r.CompletedAt)
	completedAt := *r.CompletedAt
	subjects := f.notifier.to("cara@example.com")
	require.Len(t, subjects, 2)
	assert.True(t, strings.HasPrefix(subjects[1], "Service Completed"))

	r, err = f.svc.UpdateStatus(ctx, 1, model.StatusCompleted, StatusChange{Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, completedAt, *r.CompletedAt)
	assert.Len(t, f.notifier.to("cara@example.com"), 2)

	_, err = f.svc.UpdateStatus(ctx, 1, model.StatusPending, StatusChange{Actor: admin})
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.svc.UpdateStatus(ctx, 1, model.StatusCancelled, StatusChange{Actor: admin})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestUpdateStatusConfirmWithProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.provider(t, 4)
	f.provider(t, 8)
	f.request(t, 1, model.StatusInterested)

	pid := p.ID
	r, err := f.svc.UpdateStatus(ctx, 1, model.StatusConfirmed, StatusChange{Actor: admin, AssignedProviderID: &pid})
	require.NoError(t, err)
	require.NotNil(t, r.AssignedProviderID)
	assert.Equal(t, p.ID, *r.AssignedProviderID)
	assert.Equal(t, admin, r.AssignedBy)
	require.NotNil(t, r.ConfirmedAt)
	require.NotNil(t, r.AssignedAt)
	assert.Equal(t, []string{model.ActionProviderAssigned, model.ActionStatusUpdated}, actions(r))

	assert.Len(t, f.notifier.to(p.Email), 1)
	require.Len(t, f.notifier.to("cara@example.com"), 1)
	assert.True(t, strings.HasPrefix(f.notifier.to("cara@example.com")[0], "Service Provider Assigned"))

	other := int64(8)
	_, err = f.svc.UpdateStatus(ctx, 1, model.StatusInProgress, StatusChange{Actor: admin, AssignedProviderID: &other})
	assert.ErrorIs(t, err, ErrAlreadyAssigned)

	_, err = f.svc.UpdateStatus(ctx, 1, model.StatusBroadcasted, StatusChange{Actor: admin})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestUpdateStatusConfirmWithoutProvider(t *testing.T) {
	f := newFixture(t)
	f.request(t, 1, model.StatusPending)

	r, err := f.svc.UpdateStatus(context.Background(), 1, model.StatusConfirmed, StatusChange{Actor: admin})
	require.NoError(t, err)
	assert.Nil(t, r.AssignedProviderID)
	require.Len(t, f.notifier.to("cara@example.com"), 1)
	assert.True(t, strings.HasPrefix(f.notifier.to("cara@example.com")[0], "Booking Status Update"))
}

func TestUpdateStatusValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.request(t, 1, model.StatusPending)

	_, err := f.svc.UpdateStatus(ctx, 1, model.StatusConfirmed, StatusChange{})
	assert.ErrorIs(t, err, ErrMissingActor)
	_, err = f.svc.UpdateStatus(ctx, 1, model.Status("archived"), StatusChange{Actor: admin})
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.svc.UpdateStatus(ctx, 99, model.StatusConfirmed, StatusChange{Actor: admin})
	assert.ErrorIs(t, err, ErrNotFound)
	missing := int64(404)
	_, err = f.svc.UpdateStatus(ctx, 1, model.StatusConfirmed, StatusChange{Actor: admin, AssignedProviderID: &missing})
	assert.ErrorIs(t, err, ErrNotFound)
}

// Whatever sequence of operations runs, a provider once assigned never changes.
func TestAssignmentIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := int64(1); i <= 4; i++ {
		f.provider(t, i)
	}
	f.request(t, 1, model.StatusPending)

	ops := []func() error{
		func() error { _, err := f.svc.Broadcast(ctx, 1, admin); return err },
		func() error { _, err := f.svc.ShowInterest(ctx, 1, 1); return err },
		func() error { _, err := f.svc.ShowInterest(ctx, 1, 2); return err },
		func() error { _, err := f.svc.AdminRejectInterest(ctx, 1, 1, admin); return err },
		func() error { _, err := f.svc.AdminAssignProvider(ctx, 1, 2, admin); return err },
		func() error { _, err := f.svc.AcceptBooking(ctx, 1, 3); return err },
		func() error { _, err := f.svc.AdminAssignProvider(ctx, 1, 4, admin); return err },
		func() error {
			id := int64(1)
			_, err := f.svc.UpdateStatus(ctx, 1, model.StatusConfirmed, StatusChange{Actor: admin, AssignedProviderID: &id})
			return err
		},
		func() error { _, err := f.svc.UpdateStatus(ctx, 1, model.StatusInProgress, StatusChange{Actor: admin}); return err },
		func() error { _, err := f.svc.UpdateStatus(ctx, 1, model.StatusCompleted, StatusChange{Actor: admin}); return err },
	}

	var holder *int64
	for i, op := range ops {
		_ = op()
		r := f.get(t, 1)
		if holder != nil {
			require.NotNil(t, r.AssignedProviderID, "step %d", i)
			assert.Equal(t, *holder, *r.AssignedProviderID, "step %d", i)
		} else if r.AssignedProviderID != nil {
			v := *r.AssignedProviderID
			holder = &v
		}
	}
	require.NotNil(t, holder)
	assert.Equal(t, int64(2), *holder)
	assert.Equal(t, model.StatusCompleted, f.get(t, 1).Status)
}

func TestCancelKeepsAssignedProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider(t, 2)
	f.request(t, 1, model.StatusPending)
	_, err := f.svc.AcceptBooking(ctx, 1, 2)
	require.NoError(t, err)

	r, err := f.svc.UpdateStatus(ctx, 1, model.StatusCancelled, StatusChange{Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, r.Status)
	require.NotNil(t, r.AssignedProviderID)
	assert.Equal(t, int64(2), *r.AssignedProviderID)
	assert.Equal(t, "p2@pros.test", r.ProviderEmail)
}

func TestAvailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider(t, 1)
	f.provider(t, 2)
	f.request(t, 1, model.StatusBroadcasted)
	f.request(t, 2, model.StatusPending)
	f.request(t, 3, model.StatusCompleted)
	f.request(t, 4, model.StatusPending)
	_, err := f.svc.ShowInterest(ctx, 1, 1)
	require.NoError(t, err)
	_, err = f.svc.AcceptBooking(ctx, 4, 2)
	require.NoError(t, err)

	open, err := f.svc.Available(ctx, 1)
	require.NoError(t, err)
	ids := map[int64]bool{}
	for _, o := range open {
		ids[o.RequestID] = o.AlreadyInterested
	}
	assert.Equal(t, map[int64]bool{1: true, 2: false}, ids)

	mine, err := f.svc.Assigned(ctx, 2)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, int64(4), mine[0].RequestID)
}

func TestListAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.request(t, 1, model.StatusPending)
	f.request(t, 2, model.StatusBroadcasted)

	all, err := f.svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := f.svc.List(ctx, ListFilter{Status: model.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(1), pending[0].RequestID)

	_, err = f.svc.List(ctx, ListFilter{Status: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	st, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
}

func TestEventsFollowWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider(t, 1)
	f.request(t, 1, model.StatusPending)

	_, err := f.svc.Broadcast(ctx, 1, admin)
	require.NoError(t, err)
	_, err = f.svc.AcceptBooking(ctx, 1, 1)
	require.Error(t, err)
	_, err = f.svc.ShowInterest(ctx, 1, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{model.ActionRequestBroadcasted, model.ActionProviderInterested}, f.events.types())
}

func TestNowIsInjected(t *testing.T) {
	catalog, err := pricing.Load()
	require.NoError(t, err)
	ms := store.NewMemoryStore()
	fixed := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	svc := New(ms, ms, catalog, &fakeNotifier{}, nil, nil, Options{Now: func() time.Time { return fixed }})

	require.NoError(t, ms.CreateProvider(context.Background(), &model.Provider{ID: 1, Name: "A", Email: "a@pros.test"}))
	require.NoError(t, ms.CreateRequest(context.Background(), &model.ServiceRequest{RequestID: 1, Status: model.StatusPending, CustomerEmail: "c@x.test"}))

	r, err := svc.AcceptBooking(context.Background(), 1, 1)
	require.NoError(t, err)
	require.NotNil(t, r.ConfirmedAt)
	assert.True(t, fixed.Equal(*r.ConfirmedAt))
	assert.True(t, fixed.Equal(r.AuditLog[0].Timestamp))
}
