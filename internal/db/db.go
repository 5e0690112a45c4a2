package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	slog.Info("connected to postgres")
	return pool, nil
}

// EnsureSchema creates or upgrades tables in place. Each step is idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	steps := []struct {
		name string
		fn   func(context.Context, *pgxpool.Pool) error
	}{
		{"users", ensureUsersTable},
		{"providers", ensureProvidersTable},
		{"service_requests", ensureServiceRequestsTable},
		{"service_requests.version", ensureVersionColumn},
		{"complaints", ensureComplaintsTable},
	}
	for _, s := range steps {
		if err := s.fn(ctx, pool); err != nil {
			return fmt.Errorf("ensure %s: %w", s.name, err)
		}
	}
	return nil
}

func ensureUsersTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            phone TEXT NOT NULL DEFAULT '',
            role TEXT NOT NULL DEFAULT 'customer' CHECK (role IN ('customer','provider','admin')),
            password TEXT NOT NULL,
            provider_id BIGINT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`)
	return err
}

func ensureProvidersTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS providers (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            phone TEXT NOT NULL DEFAULT '',
            rating DOUBLE PRECISION NOT NULL DEFAULT 0,
            service_areas TEXT[] NOT NULL DEFAULT '{}',
            active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`)
	return err
}

// ensureServiceRequestsTable creates the request table. The check constraint
// keeps an assigned provider only on post-assignment statuses.
func ensureServiceRequestsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS service_requests (
            request_id BIGSERIAL PRIMARY KEY,
            status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN (
                'pending','broadcasted','interested','assigned',
                'confirmed','in_progress','completed','cancelled'
            )),
            assigned_provider_id BIGINT NULL REFERENCES providers(id),
            provider_name TEXT NOT NULL DEFAULT '',
            provider_email TEXT NOT NULL DEFAULT '',
            provider_phone TEXT NOT NULL DEFAULT '',
            assigned_by TEXT NOT NULL DEFAULT '',
            interested_providers JSONB NOT NULL DEFAULT '[]'::jsonb,
            audit_log JSONB NOT NULL DEFAULT '[]'::jsonb,
            customer_id UUID NULL REFERENCES users(id) ON DELETE SET NULL,
            customer_name TEXT NOT NULL,
            customer_email TEXT NOT NULL,
            customer_phone TEXT NOT NULL DEFAULT '',
            customer_address TEXT NOT NULL DEFAULT '',
            preferred_date TEXT NOT NULL DEFAULT '',
            preferred_time TEXT NOT NULL DEFAULT '',
            service_items JSONB NOT NULL DEFAULT '[]'::jsonb,
            special_instructions TEXT NOT NULL DEFAULT '',
            total_customer_paid NUMERIC(12,2) NOT NULL DEFAULT 0,
            total_provider_payout NUMERIC(12,2) NOT NULL DEFAULT 0,
            total_commission_earned NUMERIC(12,2) NOT NULL DEFAULT 0,
            priority TEXT NOT NULL DEFAULT 'normal',
            admin_notes TEXT NOT NULL DEFAULT '',
            payment_method TEXT NOT NULL DEFAULT '',
            proof_of_payment_url TEXT NOT NULL DEFAULT '',
            customer_payment_received BOOLEAN NOT NULL DEFAULT FALSE,
            provider_payment_made BOOLEAN NOT NULL DEFAULT FALSE,
            commission_collected BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            confirmed_at TIMESTAMPTZ NULL,
            assigned_at TIMESTAMPTZ NULL,
            completed_at TIMESTAMPTZ NULL,
            CONSTRAINT service_requests_assigned_status_check CHECK (
                assigned_provider_id IS NULL
                OR status IN ('assigned','confirmed','in_progress','completed','cancelled')
            )
        );
        CREATE INDEX IF NOT EXISTS idx_service_requests_status ON service_requests(status);
        CREATE INDEX IF NOT EXISTS idx_service_requests_provider ON service_requests(assigned_provider_id);
        CREATE INDEX IF NOT EXISTS idx_service_requests_customer_email ON service_requests(lower(customer_email));
    `)
	return err
}

// ensureVersionColumn adds service_requests.version to databases created before it existed.
func ensureVersionColumn(ctx context.Context, pool *pgxpool.Pool) error {
	var exists bool
	err := pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM information_schema.columns
            WHERE table_schema = 'public' AND table_name = 'service_requests' AND column_name = 'version'
        )`).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := pool.Exec(ctx, `ALTER TABLE service_requests ADD COLUMN IF NOT EXISTS version BIGINT NOT NULL DEFAULT 1`); err != nil {
		return err
	}
	slog.Info("service_requests.version column ensured")
	return nil
}

func ensureComplaintsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS complaints (
            id BIGSERIAL PRIMARY KEY,
            request_id BIGINT NULL REFERENCES service_requests(request_id) ON DELETE SET NULL,
            name TEXT NOT NULL,
            email TEXT NOT NULL,
            phone TEXT NOT NULL DEFAULT '',
            subject TEXT NOT NULL,
            message TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','in_progress','resolved','closed')),
            admin_notes TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            resolved_at TIMESTAMPTZ NULL
        );
        CREATE INDEX IF NOT EXISTS idx_complaints_status ON complaints(status);
    `)
	return err
}
