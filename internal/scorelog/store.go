package scorelog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Terapyy18/ArtGuessr/internal/domain"
)

// ErrStore wraps every backend failure.
var ErrStore = errors.New("score log store error")

// Store is the persistence contract the round engine and the history screen need.
type Store interface {
	Append(ctx context.Context, rec domain.ScoreRecord) error
	ListNewestFirst(ctx context.Context) ([]domain.ScoreRecord, error)
	DeleteAt(ctx context.Context, indices []int) error
	ClearIDs(ctx context.Context) error
	PutIDs(ctx context.Context, ids []domain.ArtworkID) error
}

// IDLister exposes the scratchpad contents, ascending. All backends implement it.
type IDLister interface {
	ListIDs(ctx context.Context) ([]domain.ArtworkID, error)
}

// NewRecord stamps a record with a fresh id and the current time.
func NewRecord(sessionID string, score, maxScore int) domain.ScoreRecord {
	return domain.ScoreRecord{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Score:     score,
		MaxScore:  maxScore,
		Date:      time.Now().UTC(),
	}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStore, op, err)
}

// sortNewestFirst orders by date descending, falling back to id for ties.
func sortNewestFirst(recs []domain.ScoreRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].Date.Equal(recs[j].Date) {
			return recs[i].Date.After(recs[j].Date)
		}
		return recs[i].ID > recs[j].ID
	})
}

// idsAt resolves newest-first positions to record ids. Out of range and
// repeated positions are ignored.
func idsAt(recs []domain.ScoreRecord, indices []int) []string {
	seen := make(map[int]struct{}, len(indices))
	out := make([]string, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(recs) {
			continue
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		out = append(out, recs[i].ID)
	}
	return out
}

func uniqueIDs(ids []domain.ArtworkID) []domain.ArtworkID {
	seen := make(map[domain.ArtworkID]struct{}, len(ids))
	out := make([]domain.ArtworkID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sortIDs(ids []domain.ArtworkID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
