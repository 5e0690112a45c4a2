package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/homeswift/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}

const requestColumns = `request_id, status, assigned_provider_id, provider_name, provider_email, provider_phone, assigned_by,
    interested_providers, audit_log, customer_id::text, customer_name, customer_email, customer_phone, customer_address,
    preferred_date, preferred_time, service_items, special_instructions,
    total_customer_paid::text, total_provider_payout::text, total_commission_earned::text,
    priority, admin_notes, payment_method, proof_of_payment_url,
    customer_payment_received, provider_payment_made, commission_collected,
    created_at, updated_at, confirmed_at, assigned_at, completed_at, version`

func scanRequest(row pgx.Row) (*model.ServiceRequest, error) {
	var (
		r                        model.ServiceRequest
		status                   string
		interested, audit, items []byte
		paid, payout, commission string
	)
	err := row.Scan(
		&r.RequestID, &status, &r.AssignedProviderID, &r.ProviderName, &r.ProviderEmail, &r.ProviderPhone, &r.AssignedBy,
		&interested, &audit, &r.CustomerID, &r.CustomerName, &r.CustomerEmail, &r.CustomerPhone, &r.CustomerAddress,
		&r.PreferredDate, &r.PreferredTime, &items, &r.SpecialInstructions,
		&paid, &payout, &commission,
		&r.Priority, &r.AdminNotes, &r.PaymentMethod, &r.ProofOfPaymentURL,
		&r.CustomerPaymentReceived, &r.ProviderPaymentMade, &r.CommissionCollected,
		&r.CreatedAt, &r.UpdatedAt, &r.ConfirmedAt, &r.AssignedAt, &r.CompletedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}
	r.Status = model.Status(status)
	r.InterestedProviders = model.DecodeInterested(interested, r.RequestID)
	r.AuditLog = model.DecodeAudit(audit, r.RequestID)
	r.ServiceItems = model.DecodeServiceItems(items, r.RequestID)
	r.TotalCustomerPaid = parseMoney(paid)
	r.TotalProviderPayout = parseMoney(payout)
	r.TotalCommissionEarned = parseMoney(commission)
	return &r, nil
}

func parseMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *PostgresStore) CreateRequest(ctx context.Context, r *model.ServiceRequest) error {
	if r.InterestedProviders == nil {
		r.InterestedProviders = []model.InterestedProvider{}
	}
	if r.AuditLog == nil {
		r.AuditLog = []model.AuditEntry{}
	}
	if r.Status == "" {
		r.Status = model.StatusPending
	}
	if r.Priority == "" {
		r.Priority = "normal"
	}
	interested, err := jsonText(r.InterestedProviders)
	if err != nil {
		return err
	}
	audit, err := jsonText(r.AuditLog)
	if err != nil {
		return err
	}
	items, err := jsonText(r.ServiceItems)
	if err != nil {
		return err
	}

	row := s.pool.QueryRow(ctx, `
        INSERT INTO service_requests (
            request_id, status, interested_providers, audit_log,
            customer_id, customer_name, customer_email, customer_phone, customer_address,
            preferred_date, preferred_time, service_items, special_instructions,
            total_customer_paid, total_provider_payout, total_commission_earned, priority
        ) VALUES (
            COALESCE(NULLIF($1, 0), nextval('service_requests_request_id_seq')), $2, $3::jsonb, $4::jsonb,
            $5::uuid, $6, $7, $8, $9,
            $10, $11, $12::jsonb, $13,
            $14::numeric, $15::numeric, $16::numeric, $17
        )
        RETURNING `+requestColumns,
		r.RequestID, string(r.Status), interested, audit,
		r.CustomerID, r.CustomerName, r.CustomerEmail, r.CustomerPhone, r.CustomerAddress,
		r.PreferredDate, r.PreferredTime, items, r.SpecialInstructions,
		r.TotalCustomerPaid.String(), r.TotalProviderPayout.String(), r.TotalCommissionEarned.String(), r.Priority,
	)
	created, err := scanRequest(row)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert service request: %w", err)
	}
	*r = *created
	return nil
}

func (s *PostgresStore) GetRequest(ctx context.Context, id int64) (*model.ServiceRequest, error) {
	r, err := scanRequest(s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE request_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *PostgresStore) ListRequests(ctx context.Context, f RequestFilter) ([]model.ServiceRequest, error) {
	var (
		where []string
		args  []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(expr, len(args)))
	}
	if len(f.Statuses) > 0 {
		add("status = ANY($%d)", statusStrings(f.Statuses))
	}
	if f.ProviderID != nil {
		add("assigned_provider_id = $%d", *f.ProviderID)
	}
	if f.CustomerEmail != "" {
		add("lower(customer_email) = lower($%d)", f.CustomerEmail)
	}
	if f.UnassignedOnly {
		where = append(where, "assigned_provider_id IS NULL")
	}

	q := `SELECT ` + requestColumns + ` FROM service_requests`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, request_id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list service requests: %w", err)
	}
	defer rows.Close()

	out := make([]model.ServiceRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service request: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateIf runs one UPDATE whose WHERE clause carries the guard, so the check
// and the write are a single atomic statement. No row back means the guard
// failed or the request does not exist.
func (s *PostgresStore) UpdateIf(ctx context.Context, id int64, g Guard, p Patch) (*model.ServiceRequest, error) {
	args := []any{id, time.Now().UTC()}
	sets := []string{"version = version + 1", "updated_at = $2"}
	set := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if p.Status != nil {
		set("status = $%d", string(*p.Status))
	}
	if a := p.Assign; a != nil {
		set("assigned_provider_id = $%d", a.ProviderID)
		set("provider_name = $%d", a.Name)
		set("provider_email = $%d", a.Email)
		set("provider_phone = $%d", a.Phone)
		if a.AssignedBy != "" {
			set("assigned_by = $%d", a.AssignedBy)
		}
	}
	if p.SetInterested {
		list := p.Interested
		if list == nil {
			list = []model.InterestedProvider{}
		}
		txt, err := jsonText(list)
		if err != nil {
			return nil, err
		}
		set("interested_providers = $%d::jsonb", txt)
	}
	if len(p.Audit) > 0 {
		txt, err := jsonText(p.Audit)
		if err != nil {
			return nil, err
		}
		set("audit_log = COALESCE(audit_log, '[]'::jsonb) || $%d::jsonb", txt)
	}
	if p.ConfirmedAt != nil {
		set("confirmed_at = COALESCE(confirmed_at, $%d)", p.ConfirmedAt.UTC())
	}
	if p.AssignedAt != nil {
		set("assigned_at = COALESCE(assigned_at, $%d)", p.AssignedAt.UTC())
	}
	if p.CompletedAt != nil {
		set("completed_at = COALESCE(completed_at, $%d)", p.CompletedAt.UTC())
	}
	if a := p.Admin; !a.Empty() {
		if a.Priority != nil {
			set("priority = $%d", *a.Priority)
		}
		if a.AdminNotes != nil {
			set("admin_notes = $%d", *a.AdminNotes)
		}
		if a.PaymentMethod != nil {
			set("payment_method = $%d", *a.PaymentMethod)
		}
		if a.ProofOfPaymentURL != nil {
			set("proof_of_payment_url = $%d", *a.ProofOfPaymentURL)
		}
		if a.CustomerPaymentReceived != nil {
			set("customer_payment_received = $%d", *a.CustomerPaymentReceived)
		}
		if a.ProviderPaymentMade != nil {
			set("provider_payment_made = $%d", *a.ProviderPaymentMade)
		}
		if a.CommissionCollected != nil {
			set("commission_collected = $%d", *a.CommissionCollected)
		}
	}

	where := []string{"request_id = $1"}
	cond := func(expr string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(expr, len(args)))
	}
	if len(g.Statuses) > 0 {
		cond("status = ANY($%d)", statusStrings(g.Statuses))
	}
	if g.Unassigned {
		where = append(where, "assigned_provider_id IS NULL")
	}
	if g.Version != 0 {
		cond("version = $%d", g.Version)
	}

	q := "UPDATE service_requests SET " + strings.Join(sets, ", ") +
		" WHERE " + strings.Join(where, " AND ") +
		" RETURNING " + requestColumns

	r, err := scanRequest(s.pool.QueryRow(ctx, q, args...))
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update service request %d: %w", id, err)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM service_requests WHERE request_id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrGuardFailed
}

func (s *PostgresStore) RequestStats(ctx context.Context) (*model.RequestStats, error) {
	st := &model.RequestStats{ByStatus: make(map[model.Status]int)}

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM service_requests GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count requests: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, err
		}
		st.ByStatus[model.Status(status)] = n
		st.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var revenue, commission, payouts string
	err = s.pool.QueryRow(ctx, `
        SELECT COALESCE(SUM(total_customer_paid), 0)::text,
               COALESCE(SUM(total_commission_earned), 0)::text,
               COALESCE(SUM(total_provider_payout), 0)::text
        FROM service_requests WHERE status = 'completed'`).Scan(&revenue, &commission, &payouts)
	if err != nil {
		return nil, fmt.Errorf("sum completed requests: %w", err)
	}
	st.Revenue = parseMoney(revenue)
	st.Commission = parseMoney(commission)
	st.Payouts = parseMoney(payouts)
	return st, nil
}

// Providers

const providerColumns = `id, name, email, phone, rating, service_areas, active, created_at`

func scanProvider(row pgx.Row) (*model.Provider, error) {
	var p model.Provider
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.Rating, &p.ServiceAreas, &p.Active, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetProvider(ctx context.Context, id int64) (*model.Provider, error) {
	p, err := scanProvider(s.pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *PostgresStore) ListProviders(ctx context.Context, activeOnly bool) ([]model.Provider, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+providerColumns+` FROM providers WHERE ($1 = FALSE OR active) ORDER BY id`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()
	out := make([]model.Provider, 0)
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertProvider(ctx context.Context, q queryRower, p *model.Provider) error {
	areas := p.ServiceAreas
	if areas == nil {
		areas = []string{}
	}
	err := q.QueryRow(ctx, `
        INSERT INTO providers (name, email, phone, rating, service_areas, active)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at`,
		p.Name, p.Email, p.Phone, p.Rating, areas, p.Active,
	).Scan(&p.ID, &p.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *PostgresStore) CreateProvider(ctx context.Context, p *model.Provider) error {
	return insertProvider(ctx, s.pool, p)
}

func (s *PostgresStore) CreateProviderAccount(ctx context.Context, p *model.Provider, u *model.User) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertProvider(ctx, tx, p); err != nil {
		return err
	}
	u.ProviderID = &p.ID
	u.Role = model.RoleProvider
	if err := insertUser(ctx, tx, u); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Users

const userColumns = `id::text, name, email, phone, role, password, provider_id, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &role, &u.PasswordHash, &u.ProviderID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

func insertUser(ctx context.Context, q queryRower, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = model.RoleCustomer
	}
	err := q.QueryRow(ctx, `
        INSERT INTO users (id, name, email, phone, role, password, provider_id)
        VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.Phone, string(u.Role), u.PasswordHash, u.ProviderID,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	return insertUser(ctx, s.pool, u)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1::uuid`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	out := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateUser(ctx context.Context, id string, p UserPatch) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var role *string
	if p.Role != nil {
		r := string(*p.Role)
		role = &r
	}
	u, err := scanUser(s.pool.QueryRow(ctx, `
        UPDATE users SET
            name = COALESCE($2::text, name),
            email = COALESCE($3::text, email),
            phone = COALESCE($4::text, phone),
            role = COALESCE($5::text, role),
            updated_at = NOW()
        WHERE id = $1::uuid
        RETURNING `+userColumns,
		id, p.Name, p.Email, p.Phone, role,
	))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrNotFound
	case isUniqueViolation(err):
		return nil, ErrDuplicate
	}
	return u, err
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetRoleByEmail(ctx context.Context, email string, role model.Role) error {
	ct, err := s.pool.Exec(ctx, `UPDATE users SET role = $1, updated_at = NOW() WHERE lower(email) = lower($2)`, string(role), email)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetPassword(ctx context.Context, id, hash string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	ct, err := s.pool.Exec(ctx, `UPDATE users SET password = $1, updated_at = NOW() WHERE id = $2::uuid`, hash, id)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// Complaints

const complaintColumns = `id, request_id, name, email, phone, subject, message, status, admin_notes, created_at, updated_at, resolved_at`

func scanComplaint(row pgx.Row) (*model.Complaint, error) {
	var c model.Complaint
	var status string
	if err := row.Scan(&c.ID, &c.RequestID, &c.Name, &c.Email, &c.Phone, &c.Subject, &c.Message,
		&status, &c.AdminNotes, &c.CreatedAt, &c.UpdatedAt, &c.ResolvedAt); err != nil {
		return nil, err
	}
	c.Status = model.ComplaintStatus(status)
	return &c, nil
}

func (s *PostgresStore) CreateComplaint(ctx context.Context, c *model.Complaint) error {
	if c.Status == "" {
		c.Status = model.ComplaintPending
	}
	created, err := scanComplaint(s.pool.QueryRow(ctx, `
        INSERT INTO complaints (request_id, name, email, phone, subject, message, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING `+complaintColumns,
		c.RequestID, c.Name, c.Email, c.Phone, c.Subject, c.Message, string(c.Status),
	))
	if err != nil {
		return fmt.Errorf("insert complaint: %w", err)
	}
	*c = *created
	return nil
}

func (s *PostgresStore) ListComplaints(ctx context.Context, status model.ComplaintStatus) ([]model.Complaint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+complaintColumns+` FROM complaints WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC, id DESC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	defer rows.Close()
	out := make([]model.Complaint, 0)
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateComplaint(ctx context.Context, id int64, p ComplaintPatch) (*model.Complaint, error) {
	var status *string
	if p.Status != nil {
		v := string(*p.Status)
		status = &v
	}
	c, err := scanComplaint(s.pool.QueryRow(ctx, `
        UPDATE complaints SET
            status = COALESCE($2::text, status),
            admin_notes = COALESCE($3::text, admin_notes),
            resolved_at = CASE
                WHEN resolved_at IS NULL AND COALESCE($2::text, status) IN ('resolved','closed') THEN NOW()
                ELSE resolved_at
            END,
            updated_at = NOW()
        WHERE id = $1
        RETURNING `+complaintColumns,
		id, status, p.AdminNotes,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func statusStrings(in []model.Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
