package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/aryannaik/pitch-finder/internal/event"
)

// Postgres stores events in a pgvector column and lets the database rank them.
type Postgres struct {
	db *sql.DB
}

func OpenPostgres(ctx context.Context, dsn string, dimensions int) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	schema := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS events (
			id              TEXT PRIMARY KEY,
			data            JSONB NOT NULL,
			embedding       vector(%d) NOT NULL,
			status          TEXT NOT NULL,
			has_pitch_slots BOOLEAN NOT NULL DEFAULT FALSE,
			venue_type      TEXT NOT NULL,
			end_utc         TIMESTAMPTZ NOT NULL,
			updated_ts      TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_events_end_utc ON events (end_utc);
	`, dimensions)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create events schema")
	}
	return &Postgres{db: db}, nil
}

func placeholder(n int) string {
	return "$" + fmt.Sprint(n)
}

func (p *Postgres) Upsert(ctx context.Context, ev event.Event, embedding []float32) error {
	if err := validate(&ev, embedding); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	stmt := `
		INSERT INTO events (id, data, embedding, status, has_pitch_slots, venue_type, end_utc, updated_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			embedding = EXCLUDED.embedding,
			status = EXCLUDED.status,
			has_pitch_slots = EXCLUDED.has_pitch_slots,
			venue_type = EXCLUDED.venue_type,
			end_utc = EXCLUDED.end_utc,
			updated_ts = EXCLUDED.updated_ts
	`
	_, err = p.db.ExecContext(ctx, stmt,
		ev.ID,
		data,
		pgvector.NewVector(embedding),
		string(ev.Status),
		ev.HasPitchSlots(),
		string(ev.Venue.Type),
		ev.EndUTC,
	)
	return errors.Wrap(err, "failed to upsert event")
}

func (p *Postgres) Search(ctx context.Context, vec []float32, topK int, filter Filter) ([]Result, error) {
	if topK <= 0 {
		topK = 10
	}
	where, args := []string{"1 = 1"}, []any{pgvector.NewVector(vec)}
	if filter.Status != "" {
		where, args = append(where, "status = "+placeholder(len(args)+1)), append(args, string(filter.Status))
	}
	if filter.HasPitchSlots != nil {
		where, args = append(where, "has_pitch_slots = "+placeholder(len(args)+1)), append(args, *filter.HasPitchSlots)
	}
	if filter.VenueType != "" {
		where, args = append(where, "venue_type = "+placeholder(len(args)+1)), append(args, string(filter.VenueType))
	}
	if filter.ExcludeID != "" {
		where, args = append(where, "id <> "+placeholder(len(args)+1)), append(args, filter.ExcludeID)
	}
	args = append(args, topK)

	// <=> is cosine distance, so similarity is 1 - distance.
	query := `
		SELECT data, 1 - (embedding <=> $1) AS score
		FROM events
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY embedding <=> $1, id
		LIMIT ` + placeholder(len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []Result{}
	for rows.Next() {
		var data []byte
		var score float64
		if err := rows.Scan(&data, &score); err != nil {
			return nil, errors.Wrap(err, "failed to scan search result")
		}
		var ev event.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal event")
		}
		results = append(results, Result{Event: ev, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*event.Event, []float32, error) {
	var data []byte
	var vector pgvector.Vector
	err := p.db.QueryRowContext(ctx, `SELECT data, embedding FROM events WHERE id = $1`, id).Scan(&data, &vector)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get event")
	}
	var ev event.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, nil, errors.Wrap(err, "failed to unmarshal event")
	}
	return &ev, vector.Slice(), nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete event")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteEndedBefore(ctx context.Context, t time.Time) (int, error) {
	result, err := p.db.ExecContext(ctx, `DELETE FROM events WHERE end_utc < $1`, t)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prune events")
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count events")
	}
	return n, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
