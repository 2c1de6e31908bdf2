package quizmetrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Terapyy18/ArtGuessr/internal/domain"
	"github.com/Terapyy18/ArtGuessr/internal/engine"
	"github.com/Terapyy18/ArtGuessr/internal/prefetch"
)

const namespace = "artguessr"

// Metrics counts prefetch runs, scored rounds, finished games and score appends.
type Metrics struct {
	prefetchRuns     *prometheus.CounterVec
	prefetchDuration prometheus.Histogram
	prefetchArtworks *prometheus.CounterVec
	poolSize         prometheus.Gauge
	roundsScored     *prometheus.CounterVec
	gamesFinished    prometheus.Counter
	finalScore       prometheus.Histogram
	storeAppends     *prometheus.CounterVec

	mu          sync.Mutex
	lastVersion uint64
	lastPhase   engine.Phase
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		prefetchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prefetch",
			Name:      "runs_total",
			Help:      "Prefetch runs by outcome.",
		}, []string{"outcome"}),
		prefetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "prefetch",
			Name:      "duration_seconds",
			Help:      "Wall time of a prefetch run.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		prefetchArtworks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prefetch",
			Name:      "artworks_total",
			Help:      "Artworks seen by prefetch, by stage.",
		}, []string{"stage"}),
		poolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "prefetch",
			Name:      "pool_size",
			Help:      "Playable artworks returned by the last successful run.",
		}),
		roundsScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "rounds_scored_total",
			Help:      "Scored rounds by points earned.",
		}, []string{"points"}),
		gamesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "finished_total",
			Help:      "Sessions that reached game over.",
		}),
		finalScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "game",
			Name:      "final_score",
			Help:      "Score at game over.",
			Buckets:   prometheus.LinearBuckets(0, 3, 11),
		}),
		storeAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "appends_total",
			Help:      "Score record appends by outcome.",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{
		m.prefetchRuns, m.prefetchDuration, m.prefetchArtworks, m.poolSize,
		m.roundsScored, m.gamesFinished, m.finalScore, m.storeAppends,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return m, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type prefetcher struct {
	next engine.Prefetcher
	m    *Metrics
}

// Prefetcher wraps next so every run is counted and timed.
func (m *Metrics) Prefetcher(next engine.Prefetcher) engine.Prefetcher {
	return &prefetcher{next: next, m: m}
}

func (p *prefetcher) Run(ctx context.Context) ([]domain.Artwork, prefetch.Stats, error) {
	started := time.Now()
	pool, stats, err := p.next.Run(ctx)
	p.m.prefetchDuration.Observe(time.Since(started).Seconds())
	p.m.prefetchRuns.WithLabelValues(outcome(err)).Inc()
	p.m.prefetchArtworks.WithLabelValues("found").Add(float64(stats.Found))
	p.m.prefetchArtworks.WithLabelValues("candidate").Add(float64(stats.Candidates))
	p.m.prefetchArtworks.WithLabelValues("failed").Add(float64(stats.Failed))
	p.m.prefetchArtworks.WithLabelValues("rejected").Add(float64(stats.Rejected))
	p.m.prefetchArtworks.WithLabelValues("playable").Add(float64(stats.Playable))
	if err == nil {
		p.m.poolSize.Set(float64(len(pool)))
	}
	return pool, stats, err
}

type appender struct {
	next engine.RecordAppender
	m    *Metrics
}

// Appender wraps next so every append is counted by outcome.
func (m *Metrics) Appender(next engine.RecordAppender) engine.RecordAppender {
	return &appender{next: next, m: m}
}

func (a *appender) Append(ctx context.Context, rec domain.ScoreRecord) error {
	err := a.next.Append(ctx, rec)
	a.m.storeAppends.WithLabelValues(outcome(err)).Inc()
	return err
}

// Observe is an engine subscriber. It counts a round when the popup opens
// and a game when the session enters game over. Stale views are ignored.
func (m *Metrics) Observe(v engine.View) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.Version <= m.lastVersion {
		return
	}
	m.lastVersion = v.Version
	prev := m.lastPhase
	m.lastPhase = v.Phase
	if v.Phase == prev {
		return
	}
	switch v.Phase {
	case engine.PhaseAwaitingAck:
		m.roundsScored.WithLabelValues(strconv.Itoa(v.RoundPoints)).Inc()
	case engine.PhaseGameOver:
		m.gamesFinished.Inc()
		m.finalScore.Observe(float64(v.Score))
	}
}

// Handler exposes g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ListenAndServe serves /metrics on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, g prometheus.Gatherer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("metrics_listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics listen: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
