package scorelog

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Terapyy18/ArtGuessr/internal/domain"
)

const defaultRedisPrefix = "artguessr"

// RedisStore keeps records as JSON in a hash, indexed by a sorted set scored
// by the record date in milliseconds. The id scratchpad is a plain set.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: strings.TrimSpace(prefix)}
}

// OpenRedisStore parses a redis:// URL and pings the server.
func OpenRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, storeErr("parse redis url", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, storeErr("redis ping", err)
	}
	return NewRedisStore(rdb, ""), nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *RedisStore) keyIndex() string   { return s.prefix + ":scores" }
func (s *RedisStore) keyRecords() string { return s.prefix + ":scores:records" }
func (s *RedisStore) keyIDs() string     { return s.prefix + ":artwork_ids" }

func (s *RedisStore) Append(ctx context.Context, rec domain.ScoreRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = NewRecord(rec.SessionID, rec.Score, rec.MaxScore).ID
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return storeErr("marshal record", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, s.keyRecords(), rec.ID, raw)
	pipe.ZAdd(ctx, s.keyIndex(), redis.Z{Score: float64(rec.Date.UnixMilli()), Member: rec.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr("append", err)
	}
	return nil
}

func (s *RedisStore) ListNewestFirst(ctx context.Context) ([]domain.ScoreRecord, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.keyIndex(), 0, -1).Result()
	if err != nil {
		return nil, storeErr("list index", err)
	}
	if len(ids) == 0 {
		return []domain.ScoreRecord{}, nil
	}
	raws, err := s.rdb.HMGet(ctx, s.keyRecords(), ids...).Result()
	if err != nil {
		return nil, storeErr("load records", err)
	}
	out := make([]domain.ScoreRecord, 0, len(raws))
	for _, v := range raws {
		str, ok := v.(string)
		if !ok {
			// index entry without payload
			continue
		}
		var rec domain.ScoreRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			return nil, storeErr("decode record", err)
		}
		out = append(out, rec)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *RedisStore) DeleteAt(ctx context.Context, indices []int) error {
	recs, err := s.ListNewestFirst(ctx)
	if err != nil {
		return err
	}
	ids := idsAt(recs, indices)
	if len(ids) == 0 {
		return nil
	}
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	pipe := s.rdb.TxPipeline()
	pipe.ZRem(ctx, s.keyIndex(), members...)
	pipe.HDel(ctx, s.keyRecords(), ids...)
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr("delete", err)
	}
	return nil
}

func (s *RedisStore) ClearIDs(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.keyIDs()).Err(); err != nil {
		return storeErr("clear ids", err)
	}
	return nil
}

func (s *RedisStore) PutIDs(ctx context.Context, ids []domain.ArtworkID) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = int64(id)
	}
	if err := s.rdb.SAdd(ctx, s.keyIDs(), members...).Err(); err != nil {
		return storeErr("put ids", err)
	}
	return nil
}

func (s *RedisStore) ListIDs(ctx context.Context) ([]domain.ArtworkID, error) {
	members, err := s.rdb.SMembers(ctx, s.keyIDs()).Result()
	if err != nil {
		return nil, storeErr("list ids", err)
	}
	out := make([]domain.ArtworkID, 0, len(members))
	for _, m := range members {
		n, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, domain.ArtworkID(n))
	}
	sortIDs(out)
	return out, nil
}
