package quizbuilder

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Terapyy18/ArtGuessr/internal/catalogue"
	"github.com/Terapyy18/ArtGuessr/internal/config"
	"github.com/Terapyy18/ArtGuessr/internal/engine"
	"github.com/Terapyy18/ArtGuessr/internal/facade"
	"github.com/Terapyy18/ArtGuessr/internal/msgcat"
	"github.com/Terapyy18/ArtGuessr/internal/prefetch"
	"github.com/Terapyy18/ArtGuessr/internal/quizmetrics"
	"github.com/Terapyy18/ArtGuessr/internal/scorelog"
	"github.com/Terapyy18/ArtGuessr/internal/validator"
)

// Deps is the wired application. Close releases the store.
type Deps struct {
	Catalogue *catalogue.Client
	Prober    *catalogue.ImageProber
	Pipeline  *prefetch.Pipeline
	Store     scorelog.Store
	Engine    *engine.Engine
	Facade    *facade.Facade
	Messages  *msgcat.Catalog

	// Registry and Metrics are nil unless METRICS_ADDR is set.
	Registry *prometheus.Registry
	Metrics  *quizmetrics.Metrics

	closers []func() error
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	msgs, err := msgcat.New(cfg.MsgDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	d := &Deps{Messages: msgs}
	store, closer, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	d.Store = store
	if closer != nil {
		d.closers = append(d.closers, closer)
	}

	d.Catalogue = catalogue.NewClient(cfg.MetBaseURL,
		catalogue.WithTimeout(cfg.HTTPTimeout),
		catalogue.WithLogger(logger.Named("catalogue")),
		catalogue.WithRateLimit(cfg.MetRateLimit, max(1, int(cfg.MetRateLimit))),
	)
	d.Prober = catalogue.NewImageProber(cfg.ProbeTimeout, logger.Named("probe"))
	val := validator.New(d.Prober, logger.Named("validator"))

	popts := []prefetch.Option{
		prefetch.WithScratchpad(store),
		prefetch.WithLogger(logger.Named("prefetch")),
	}
	eopts := []engine.Option{
		engine.WithRounds(cfg.Rounds),
		engine.WithLogger(logger.Named("engine")),
	}
	if cfg.RNGSeed != 0 {
		popts = append(popts, prefetch.WithRand(rand.New(rand.NewPCG(cfg.RNGSeed, 1))))
		eopts = append(eopts, engine.WithShuffler(rand.New(rand.NewPCG(cfg.RNGSeed, 2))))
	}
	d.Pipeline = prefetch.New(d.Catalogue, val, prefetch.Config{
		Query:       catalogue.PaintingQuery(),
		PoolSize:    cfg.PoolSize,
		Oversample:  cfg.OversampleFactor,
		Concurrency: cfg.FetchConcurrency,
	}, popts...)

	var (
		pf  engine.Prefetcher     = d.Pipeline
		app engine.RecordAppender = store
	)
	if cfg.MetricsAddr != "" {
		d.Registry = quizmetrics.NewRegistry()
		if d.Metrics, err = quizmetrics.New(d.Registry); err != nil {
			_ = d.Close()
			return nil, err
		}
		pf, app = d.Metrics.Prefetcher(pf), d.Metrics.Appender(app)
	}

	d.Engine = engine.New(pf, app, eopts...)
	if d.Metrics != nil {
		sub := d.Engine.Subscribe(d.Metrics.Observe)
		d.closers = append(d.closers, func() error { d.Engine.Unsubscribe(sub); return nil })
	}
	d.Facade = facade.New(d.Engine, store, msgs, facade.WithLogger(logger.Named("facade")))
	d.closers = append(d.closers, func() error { d.Facade.Close(); return nil })

	logger.Info("quiz_wired",
		zap.String("store", cfg.StoreBackend),
		zap.String("catalogue", cfg.MetBaseURL),
		zap.Int("rounds", cfg.Rounds),
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("candidates", cfg.Candidates()),
		zap.Float64("met_rate_limit", cfg.MetRateLimit),
		zap.Bool("metrics", d.Metrics != nil),
	)
	return d, nil
}

func (d *Deps) Close() error {
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	d.closers = nil
	return first
}

func openStore(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (scorelog.Store, func() error, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		s, err := scorelog.OpenPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		logger.Info("store_opened", zap.String("backend", "postgres"))
		return s, s.Close, nil
	case config.BackendRedis:
		s, err := scorelog.OpenRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis store: %w", err)
		}
		logger.Info("store_opened", zap.String("backend", "redis"))
		return s, s.Close, nil
	case config.BackendMemory, "":
		logger.Info("store_opened", zap.String("backend", "memory"))
		return scorelog.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
