package prefetch

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Terapyy18/ArtGuessr/internal/catalogue"
	"github.com/Terapyy18/ArtGuessr/internal/domain"
)

const (
	DefaultPoolSize   = 30
	DefaultOversample = 2
)

type Catalogue interface {
	SearchIDs(ctx context.Context, q catalogue.Query) ([]domain.ArtworkID, error)
	LookupByID(ctx context.Context, id domain.ArtworkID) (*domain.Artwork, error)
}

type Validator interface {
	Playable(ctx context.Context, a *domain.Artwork) bool
}

// IDScratchpad records the candidate ids of the prefetch in progress.
type IDScratchpad interface {
	ClearIDs(ctx context.Context) error
	PutIDs(ctx context.Context, ids []domain.ArtworkID) error
}

type Config struct {
	Query       catalogue.Query
	PoolSize    int
	Oversample  int
	Concurrency int // <= 0 launches every candidate at once
}

// Stats summarises one run.
type Stats struct {
	Found      int
	Candidates int
	Failed     int
	Rejected   int
	Playable   int
	Elapsed    time.Duration
}

type Pipeline struct {
	cat     Catalogue
	val     Validator
	scratch IDScratchpad
	cfg     Config
	logger  *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Option func(*Pipeline)

func WithScratchpad(s IDScratchpad) Option { return func(p *Pipeline) { p.scratch = s } }

func WithRand(r *rand.Rand) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.rng = r
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func New(cat Catalogue, val Validator, cfg Config, opts ...Option) *Pipeline {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.Oversample <= 0 {
		cfg.Oversample = DefaultOversample
	}
	p := &Pipeline{
		cat:    cat,
		val:    val,
		cfg:    cfg,
		logger: zap.NewNop(),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run builds a pool of at most PoolSize playable artworks. Only a failing
// search fails the run; every per-candidate failure is dropped.
func (p *Pipeline) Run(ctx context.Context) ([]domain.Artwork, Stats, error) {
	started := time.Now()
	var st Stats

	ids, err := p.cat.SearchIDs(ctx, p.cfg.Query)
	if err != nil {
		p.logger.Warn("prefetch_search_failed", zap.Error(err))
		return nil, st, fmt.Errorf("search ids: %w", err)
	}
	st.Found = len(ids)

	candidates := p.sample(ids)
	st.Candidates = len(candidates)
	p.seedScratchpad(ctx, candidates)

	var (
		mu       sync.Mutex
		pool     = make([]domain.Artwork, 0, len(candidates))
		failed   atomic.Int32
		rejected atomic.Int32
		g        errgroup.Group
	)
	if p.cfg.Concurrency > 0 {
		g.SetLimit(p.cfg.Concurrency)
	}
	for _, id := range candidates {
		g.Go(func() error {
			a, err := p.cat.LookupByID(ctx, id)
			if err != nil {
				failed.Add(1)
				p.logger.Debug("prefetch_lookup_dropped", zap.Int64("id", int64(id)), zap.Error(err))
				return nil
			}
			if !p.val.Playable(ctx, a) {
				rejected.Add(1)
				return nil
			}
			mu.Lock()
			pool = append(pool, *a)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(pool) > p.cfg.PoolSize {
		pool = pool[:p.cfg.PoolSize]
	}
	st.Failed = int(failed.Load())
	st.Rejected = int(rejected.Load())
	st.Playable = len(pool)
	st.Elapsed = time.Since(started)

	p.logger.Info("prefetch_done",
		zap.Int("found", st.Found),
		zap.Int("candidates", st.Candidates),
		zap.Int("failed", st.Failed),
		zap.Int("rejected", st.Rejected),
		zap.Int("playable", st.Playable),
		zap.Duration("elapsed", st.Elapsed),
	)
	return pool, st, nil
}

// sample shuffles a copy of ids, removes duplicates and keeps the first
// Oversample*PoolSize entries.
func (p *Pipeline) sample(ids []domain.ArtworkID) []domain.ArtworkID {
	shuffled := append([]domain.ArtworkID(nil), ids...)
	p.rngMu.Lock()
	p.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	p.rngMu.Unlock()

	limit := p.cfg.Oversample * p.cfg.PoolSize
	seen := make(map[domain.ArtworkID]struct{}, limit)
	out := make([]domain.ArtworkID, 0, min(limit, len(shuffled)))
	for _, id := range shuffled {
		if len(out) >= limit {
			break
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (p *Pipeline) seedScratchpad(ctx context.Context, ids []domain.ArtworkID) {
	if p.scratch == nil {
		return
	}
	if err := p.scratch.ClearIDs(ctx); err != nil {
		p.logger.Warn("scratchpad_clear_failed", zap.Error(err))
	}
	if err := p.scratch.PutIDs(ctx, ids); err != nil {
		p.logger.Warn("scratchpad_put_failed", zap.Error(err))
	}
}
