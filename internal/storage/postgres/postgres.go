package postgres

import (
	"context"
	"fmt"

	"github.com/FranksOps/signlead/internal/lead"
	"github.com/FranksOps/signlead/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS leads (
	id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	state_code TEXT NOT NULL,
	name TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	opening TEXT NOT NULL DEFAULT '',
	temperature TEXT NOT NULL,
	signage TEXT[] NOT NULL DEFAULT '{}',
	revenue TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	discovered TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS leads_state_discovered ON leads (state, discovered DESC);
`

// New connects to Postgres and ensures the leads table exists.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, l *lead.Lead) error {
	query := `
	INSERT INTO leads (
		id, state, state_code, name, summary, location, phone, opening, temperature, signage, revenue, source, discovered
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		summary = EXCLUDED.summary,
		location = EXCLUDED.location,
		phone = EXCLUDED.phone,
		opening = EXCLUDED.opening,
		temperature = EXCLUDED.temperature,
		signage = EXCLUDED.signage,
		revenue = EXCLUDED.revenue,
		discovered = EXCLUDED.discovered
	`

	signage := l.Signage
	if signage == nil {
		signage = []string{}
	}

	_, err := b.pool.Exec(ctx, query,
		l.ID,
		l.State,
		l.StateCode,
		l.Name,
		l.Summary,
		l.Location,
		l.Phone,
		l.Opening,
		string(l.Temperature),
		signage,
		l.Revenue,
		l.Source,
		l.Discovered,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert %s: %w", l.ID, err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*lead.Lead, error) {
	query := `SELECT id, state, state_code, name, summary, location, phone, opening, temperature, signage, revenue, source, discovered FROM leads WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.State != "" {
		query += fmt.Sprintf(` AND (state = $%d OR state_code = $%d)`, paramCount, paramCount)
		args = append(args, filter.State)
		paramCount++
	}
	if filter.Temperature != "" {
		query += fmt.Sprintf(` AND temperature = $%d`, paramCount)
		args = append(args, string(filter.Temperature))
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND discovered >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY discovered DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	var results []*lead.Lead
	for rows.Next() {
		var l lead.Lead
		var temperature string

		err := rows.Scan(
			&l.ID, &l.State, &l.StateCode, &l.Name, &l.Summary, &l.Location, &l.Phone,
			&l.Opening, &temperature, &l.Signage, &l.Revenue, &l.Source, &l.Discovered,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		l.Temperature = lead.Temperature(temperature)

		results = append(results, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
