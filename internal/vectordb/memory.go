package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aryannaik/pitch-finder/internal/event"
)

type entry struct {
	Event     event.Event `json:"event"`
	Embedding []float32   `json:"embedding"`
}

type snapshot struct {
	Entries   []entry   `json:"entries"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Memory keeps events in a map and persists them to a JSON file when a
// data directory is configured.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	path    string
}

// NewMemory returns an empty store. An empty dataDir disables persistence.
func NewMemory(dataDir string) *Memory {
	m := &Memory{entries: make(map[string]entry)}
	if dataDir != "" {
		m.path = filepath.Join(dataDir, "events.json")
	}
	return m
}

// LoadFromDisk loads the store from its JSON file. Returns nil if the file doesn't exist.
func (m *Memory) LoadFromDisk() error {
	if m.path == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read events file: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode events: %w", err)
	}

	m.entries = make(map[string]entry, len(snap.Entries))
	for _, e := range snap.Entries {
		m.entries[e.Event.ID] = e
	}
	return nil
}

// saveLocked writes the store to disk. Callers hold m.mu.
func (m *Memory) saveLocked() error {
	if m.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	snap := snapshot{Entries: make([]entry, 0, len(m.entries)), UpdatedAt: time.Now()}
	for _, e := range m.entries {
		snap.Entries = append(snap.Entries, e)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write events file: %w", err)
	}
	return os.Rename(tmp, m.path)
}

func (m *Memory) Upsert(_ context.Context, ev event.Event, embedding []float32) error {
	if err := validate(&ev, embedding); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, existed := m.entries[ev.ID]
	m.entries[ev.ID] = entry{Event: ev, Embedding: append([]float32(nil), embedding...)}
	if err := m.saveLocked(); err != nil {
		// Memory and disk stay in step.
		if existed {
			m.entries[ev.ID] = prev
		} else {
			delete(m.entries, ev.ID)
		}
		return err
	}
	return nil
}

func (m *Memory) Search(_ context.Context, vec []float32, topK int, filter Filter) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Result, 0, len(m.entries))
	for _, e := range m.entries {
		if !filter.match(&e.Event) {
			continue
		}
		results = append(results, Result{Event: e.Event, Score: cosineSimilarity(vec, e.Embedding)})
	}
	return topResults(results, topK), nil
}

func (m *Memory) Get(_ context.Context, id string) (*event.Event, []float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	ev := e.Event
	return &ev, append([]float32(nil), e.Embedding...), nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.entries, id)
	if err := m.saveLocked(); err != nil {
		m.entries[id] = prev
		return err
	}
	return nil
}

func (m *Memory) DeleteEndedBefore(_ context.Context, t time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := make(map[string]entry)
	for id, e := range m.entries {
		if e.Event.EndUTC.Before(t) {
			removed[id] = e
			delete(m.entries, id)
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}
	if err := m.saveLocked(); err != nil {
		for id, e := range removed {
			m.entries[id] = e
		}
		return 0, err
	}
	return len(removed), nil
}

func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// UpdatedAt returns the last write time of the backing file, or zero time if unknown.
func (m *Memory) UpdatedAt() time.Time {
	if m.path == "" {
		return time.Time{}
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}
