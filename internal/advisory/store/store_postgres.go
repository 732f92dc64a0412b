package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"rehla/internal/advisory"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_advisories (
	id UUID PRIMARY KEY,
	kind TEXT NOT NULL,
	host TEXT NOT NULL,
	expected_domain TEXT NOT NULL,
	payload TEXT NOT NULL,
	serial TEXT NOT NULL,
	request_id TEXT NOT NULL DEFAULT '',
	client TEXT NOT NULL DEFAULT '',
	mobile BOOLEAN NOT NULL DEFAULT FALSE,
	observed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS scan_advisories_observed_at_idx ON scan_advisories (observed_at DESC);
CREATE INDEX IF NOT EXISTS scan_advisories_host_idx ON scan_advisories (lower(host));
`

// Postgres persists advisories in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the advisory table when it does not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure advisory schema: %w", err)
	}
	return nil
}

func (s *Postgres) Append(ctx context.Context, event advisory.Event) error {
	query := `
		INSERT INTO scan_advisories (
			id, kind, host, expected_domain, payload, serial,
			request_id, client, mobile, observed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Kind),
		event.Host,
		event.ExpectedDomain,
		event.Payload,
		event.Serial,
		event.RequestID,
		event.Client,
		event.Mobile,
		event.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("append advisory: %w", err)
	}
	return nil
}

// List returns matching events, newest first.
func (s *Postgres) List(ctx context.Context, filter advisory.Filter) ([]advisory.Event, error) {
	query := `
		SELECT id, kind, host, expected_domain, payload, serial,
			request_id, client, mobile, observed_at
		FROM scan_advisories
	`
	args := []any{}
	if len(filter.Hosts) > 0 {
		hosts := make([]string, len(filter.Hosts))
		for i, h := range filter.Hosts {
			hosts[i] = strings.ToLower(h)
		}
		args = append(args, pq.Array(hosts))
		query += ` WHERE lower(host) = ANY($1)`
	}
	args = append(args, filter.EffectiveLimit())
	query += fmt.Sprintf(` ORDER BY observed_at DESC LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list advisories: %w", err)
	}
	defer rows.Close()

	var events []advisory.Event
	for rows.Next() {
		var (
			event advisory.Event
			kind  string
		)
		if err := rows.Scan(
			&event.ID,
			&kind,
			&event.Host,
			&event.ExpectedDomain,
			&event.Payload,
			&event.Serial,
			&event.RequestID,
			&event.Client,
			&event.Mobile,
			&event.ObservedAt,
		); err != nil {
			return nil, fmt.Errorf("scan advisory: %w", err)
		}
		event.Kind = advisory.Kind(kind)
		event.ObservedAt = event.ObservedAt.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate advisories: %w", err)
	}
	return events, nil
}
