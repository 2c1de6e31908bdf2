package scorelog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Terapyy18/ArtGuessr/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS game_scores (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL DEFAULT '',
		score      INTEGER NOT NULL,
		max_score  INTEGER NOT NULL,
		played_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS game_scores_played_at_idx ON game_scores (played_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS artwork_ids (
		id BIGINT PRIMARY KEY
	)`,
}

type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore connects, pings and creates the tables if needed.
func OpenPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, storeErr("open", errors.New("DATABASE_URL is required"))
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, storeErr("open", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, storeErr("ping", err)
	}
	s := NewPostgresStore(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return storeErr("migrate", err)
		}
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, rec domain.ScoreRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = NewRecord(rec.SessionID, rec.Score, rec.MaxScore).ID
	}
	const query = `
		INSERT INTO game_scores (id, session_id, score, max_score, played_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.SessionID, rec.Score, rec.MaxScore, rec.Date); err != nil {
		return storeErr("append", err)
	}
	return nil
}

func (s *PostgresStore) ListNewestFirst(ctx context.Context) ([]domain.ScoreRecord, error) {
	return s.list(ctx, s.db)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) list(ctx context.Context, q queryer) ([]domain.ScoreRecord, error) {
	const query = `
		SELECT id, session_id, score, max_score, played_at
		FROM game_scores
		ORDER BY played_at DESC, id DESC`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, storeErr("select scores", err)
	}
	defer rows.Close()

	out := make([]domain.ScoreRecord, 0, 16)
	for rows.Next() {
		var rec domain.ScoreRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Score, &rec.MaxScore, &rec.Date); err != nil {
			return nil, storeErr("scan score", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate scores", err)
	}
	return out, nil
}

// DeleteAt resolves positions and deletes inside one transaction so a
// concurrent append cannot shift the indices in between.
func (s *PostgresStore) DeleteAt(ctx context.Context, indices []int) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return storeErr("begin delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	recs, err := s.list(ctx, tx)
	if err != nil {
		return err
	}
	ids := idsAt(recs, indices)
	if len(ids) == 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM game_scores WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return storeErr("delete scores", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("commit delete", err)
	}
	return nil
}

func (s *PostgresStore) ClearIDs(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM artwork_ids`); err != nil {
		return storeErr("clear ids", err)
	}
	return nil
}

func (s *PostgresStore) PutIDs(ctx context.Context, ids []domain.ArtworkID) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}
	const query = `
		INSERT INTO artwork_ids (id)
		SELECT unnest($1::bigint[])
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, pq.Array(raw)); err != nil {
		return storeErr("put ids", err)
	}
	return nil
}

func (s *PostgresStore) ListIDs(ctx context.Context) ([]domain.ArtworkID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM artwork_ids ORDER BY id`)
	if err != nil {
		return nil, storeErr("select ids", err)
	}
	defer rows.Close()
	var out []domain.ArtworkID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan id", err)
		}
		out = append(out, domain.ArtworkID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate ids", err)
	}
	return out, nil
}
