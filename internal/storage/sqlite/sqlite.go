package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/FranksOps/signlead/internal/lead"
	"github.com/FranksOps/signlead/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS leads (
	id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	state_code TEXT NOT NULL,
	name TEXT NOT NULL,
	summary TEXT,
	location TEXT,
	phone TEXT,
	opening TEXT,
	temperature TEXT NOT NULL,
	signage TEXT NOT NULL,
	revenue TEXT,
	source TEXT NOT NULL,
	discovered DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS leads_state_discovered ON leads (state, discovered);
`

// New opens a SQLite lead store. Saving a lead whose id already exists
// replaces the earlier row, so reruns refresh rather than duplicate.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, l *lead.Lead) error {
	signage, err := json.Marshal(l.Signage)
	if err != nil {
		return fmt.Errorf("sqlite: marshal signage: %w", err)
	}

	query := `
	INSERT OR REPLACE INTO leads (
		id, state, state_code, name, summary, location, phone, opening, temperature, signage, revenue, source, discovered
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = b.db.ExecContext(ctx, query,
		l.ID,
		l.State,
		l.StateCode,
		l.Name,
		l.Summary,
		l.Location,
		l.Phone,
		l.Opening,
		string(l.Temperature),
		string(signage),
		l.Revenue,
		l.Source,
		l.Discovered,
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert %s: %w", l.ID, err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*lead.Lead, error) {
	query := `SELECT id, state, state_code, name, summary, location, phone, opening, temperature, signage, revenue, source, discovered FROM leads WHERE 1=1`
	args := []any{}

	if filter.State != "" {
		query += ` AND (state = ? OR state_code = ?)`
		args = append(args, filter.State, filter.State)
	}
	if filter.Temperature != "" {
		query += ` AND temperature = ?`
		args = append(args, string(filter.Temperature))
	}
	if filter.Since != nil {
		query += ` AND discovered >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY discovered DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	var results []*lead.Lead
	for rows.Next() {
		var l lead.Lead
		var temperature, signage string

		err := rows.Scan(
			&l.ID, &l.State, &l.StateCode, &l.Name, &l.Summary, &l.Location, &l.Phone,
			&l.Opening, &temperature, &signage, &l.Revenue, &l.Source, &l.Discovered,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}

		l.Temperature = lead.Temperature(temperature)
		if err := json.Unmarshal([]byte(signage), &l.Signage); err != nil {
			return nil, fmt.Errorf("sqlite: decode signage for %s: %w", l.ID, err)
		}

		results = append(results, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
