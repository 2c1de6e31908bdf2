package scorelog

import (
	"context"
	"strings"
	"sync"

	"github.com/Terapyy18/ArtGuessr/internal/domain"
)

// memstore keeps everything in process. Used when no backend is configured.
type memstore struct {
	mu      sync.RWMutex
	records map[string]domain.ScoreRecord
	ids     map[domain.ArtworkID]struct{}
}

func NewMemoryStore() Store {
	return &memstore{
		records: make(map[string]domain.ScoreRecord),
		ids:     make(map[domain.ArtworkID]struct{}),
	}
}

func (m *memstore) Append(ctx context.Context, rec domain.ScoreRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = NewRecord(rec.SessionID, rec.Score, rec.MaxScore).ID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

func (m *memstore) ListNewestFirst(ctx context.Context) ([]domain.ScoreRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(), nil
}

func (m *memstore) listLocked() []domain.ScoreRecord {
	out := make([]domain.ScoreRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sortNewestFirst(out)
	return out
}

func (m *memstore) DeleteAt(ctx context.Context, indices []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range idsAt(m.listLocked(), indices) {
		delete(m.records, id)
	}
	return nil
}

func (m *memstore) ClearIDs(ctx context.Context) error {
	m.mu.Lock()
	m.ids = make(map[domain.ArtworkID]struct{})
	m.mu.Unlock()
	return nil
}

func (m *memstore) PutIDs(ctx context.Context, ids []domain.ArtworkID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.ids[id] = struct{}{}
	}
	return nil
}

func (m *memstore) ListIDs(ctx context.Context) ([]domain.ArtworkID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ArtworkID, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	sortIDs(out)
	return out, nil
}
