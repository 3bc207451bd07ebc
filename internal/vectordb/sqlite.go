package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/aryannaik/pitch-finder/internal/event"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	id              TEXT PRIMARY KEY,
	data            TEXT NOT NULL,
	embedding       TEXT NOT NULL,
	status          TEXT NOT NULL,
	has_pitch_slots INTEGER NOT NULL DEFAULT 0,
	venue_type      TEXT NOT NULL,
	end_utc         INTEGER NOT NULL,
	updated_ts      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_end_utc ON events (end_utc);
`

// SQLite stores events in a single table and scores them in process, since
// SQLite has no vector type.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite database: %s", path)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create events schema")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Upsert(ctx context.Context, ev event.Event, embedding []float32) error {
	if err := validate(&ev, embedding); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}
	vec, err := json.Marshal(embedding)
	if err != nil {
		return errors.Wrap(err, "failed to marshal embedding")
	}

	stmt := `
		INSERT INTO events (id, data, embedding, status, has_pitch_slots, venue_type, end_utc, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			data = excluded.data,
			embedding = excluded.embedding,
			status = excluded.status,
			has_pitch_slots = excluded.has_pitch_slots,
			venue_type = excluded.venue_type,
			end_utc = excluded.end_utc,
			updated_ts = excluded.updated_ts
	`
	_, err = s.db.ExecContext(ctx, stmt,
		ev.ID,
		string(data),
		string(vec),
		string(ev.Status),
		ev.HasPitchSlots(),
		string(ev.Venue.Type),
		ev.EndUTC.Unix(),
		time.Now().Unix(),
	)
	return errors.Wrap(err, "failed to upsert event")
}

func (s *SQLite) Search(ctx context.Context, vec []float32, topK int, filter Filter) ([]Result, error) {
	where, args := []string{"1 = 1"}, []any{}
	if filter.Status != "" {
		where, args = append(where, "status = ?"), append(args, string(filter.Status))
	}
	if filter.HasPitchSlots != nil {
		where, args = append(where, "has_pitch_slots = ?"), append(args, *filter.HasPitchSlots)
	}
	if filter.VenueType != "" {
		where, args = append(where, "venue_type = ?"), append(args, string(filter.VenueType))
	}
	if filter.ExcludeID != "" {
		where, args = append(where, "id != ?"), append(args, filter.ExcludeID)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT data, embedding FROM events WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query events")
	}
	defer rows.Close()

	results := []Result{}
	for rows.Next() {
		ev, emb, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Event: *ev, Score: cosineSimilarity(vec, emb)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topResults(results, topK), nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*event.Event, []float32, error) {
	row := s.db.QueryRowContext(ctx, `SELECT data, embedding FROM events WHERE id = ?`, id)
	ev, emb, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	return ev, emb, err
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete event")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) DeleteEndedBefore(ctx context.Context, t time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE end_utc < ?`, t.Unix())
	if err != nil {
		return 0, errors.Wrap(err, "failed to prune events")
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "failed to count events")
	}
	return n, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*event.Event, []float32, error) {
	var data, vec string
	if err := row.Scan(&data, &vec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, err
		}
		return nil, nil, errors.Wrap(err, "failed to scan event")
	}
	var ev event.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return nil, nil, errors.Wrap(err, "failed to unmarshal event")
	}
	var emb []float32
	if err := json.Unmarshal([]byte(vec), &emb); err != nil {
		return nil, nil, errors.Wrap(err, "failed to unmarshal embedding")
	}
	return &ev, emb, nil
}
