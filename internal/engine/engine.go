package engine

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Terapyy18/ArtGuessr/internal/domain"
	"github.com/Terapyy18/ArtGuessr/internal/prefetch"
	"github.com/Terapyy18/ArtGuessr/internal/scorelog"
)

// Prefetcher builds the playable pool for a new session.
type Prefetcher interface {
	Run(ctx context.Context) ([]domain.Artwork, prefetch.Stats, error)
}

// Shuffler permutes n elements in place. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// RecordAppender is the only store operation the engine performs.
type RecordAppender interface {
	Append(ctx context.Context, rec domain.ScoreRecord) error
}

type staged struct {
	artist string
	title  string
	year   int
	set    [3]bool
}

// Engine owns one game session: the pool, the current round and the score.
// All transitions happen under mu; subscribers are notified after it is released.
type Engine struct {
	prefetcher Prefetcher
	store      RecordAppender
	logger     *zap.Logger
	rounds     int

	mu          sync.Mutex
	rng         Shuffler
	generation  uint64
	version     uint64
	sessionID   string
	phase       Phase
	step        Step
	roundIndex  int
	score       int
	roundPoints int
	pool        []domain.Artwork
	target      *domain.Artwork
	options     []domain.Artwork
	staged      staged
	details     []ScoreDetail

	subMu   sync.RWMutex
	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(View)
}

type Option func(*Engine)

func WithRounds(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.rounds = n
		}
	}
}

// WithShuffler replaces the source of the pool and option permutations.
func WithShuffler(s Shuffler) Option {
	return func(e *Engine) {
		if s != nil {
			e.rng = s
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func New(p Prefetcher, store RecordAppender, opts ...Option) *Engine {
	e := &Engine{
		prefetcher: p,
		store:      store,
		logger:     zap.NewNop(),
		rounds:     DefaultRounds,
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		phase:      PhaseIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Rounds() int   { return e.rounds }
func (e *Engine) MaxScore() int { return PointsPerRound * e.rounds }

// StartGame resets the session, builds a new pool and loads the first round.
// It may be called from any phase; a prefetch still running for an earlier
// start is discarded when it completes.
func (e *Engine) StartGame(ctx context.Context) error {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.sessionID = uuid.NewString()
	e.phase = PhasePrefetching
	e.step = StepArtist
	e.roundIndex = 0
	e.score = 0
	e.roundPoints = 0
	e.pool = nil
	e.clearRoundLocked()
	sessionID := e.sessionID
	v := e.commitLocked()
	e.mu.Unlock()
	e.publish(v)

	e.logger.Info("session_start", zap.String("session_id", sessionID), zap.Int("rounds", e.rounds))

	var pool []domain.Artwork
	if e.prefetcher != nil {
		var err error
		pool, _, err = e.prefetcher.Run(ctx)
		if err != nil {
			e.logger.Warn("session_prefetch_failed", zap.String("session_id", sessionID), zap.Error(err))
			pool = nil
		}
	}

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		e.logger.Info("session_prefetch_abandoned", zap.String("session_id", sessionID))
		return ErrSuperseded
	}
	e.pool = distinct(pool)
	e.rng.Shuffle(len(e.pool), func(i, j int) { e.pool[i], e.pool[j] = e.pool[j], e.pool[i] })
	if !e.loadRoundLocked() {
		e.logger.Info("session_over", zap.String("session_id", sessionID), zap.String("reason", "pool_exhausted"), zap.Int("score", e.score))
	}
	v = e.commitLocked()
	e.mu.Unlock()
	e.publish(v)
	return nil
}

// ChooseOption stages the field of the current step from the chosen artwork
// and advances. On the year step the round is scored and the popup opens.
func (e *Engine) ChooseOption(id domain.ArtworkID) error {
	e.mu.Lock()
	if e.phase != PhaseInRound {
		e.mu.Unlock()
		return ErrIllegalState
	}
	opt, ok := e.optionLocked(id)
	if !ok {
		e.mu.Unlock()
		return ErrUnknownOption
	}

	switch e.step {
	case StepArtist:
		e.staged.artist = opt.Artist
		e.staged.set[StepArtist] = true
		e.step = StepTitle
	case StepTitle:
		e.staged.title = opt.Title
		e.staged.set[StepTitle] = true
		e.step = StepYear
	case StepYear:
		e.staged.year = opt.Year
		e.staged.set[StepYear] = true
		e.scoreRoundLocked()
		e.phase = PhaseAwaitingAck
	}
	v := e.commitLocked()
	e.mu.Unlock()
	e.publish(v)
	return nil
}

// AcknowledgeRound closes the popup and moves to the next round or to game over.
// Outside AwaitingAck it is a no-op.
func (e *Engine) AcknowledgeRound() error {
	e.mu.Lock()
	if e.phase != PhaseAwaitingAck {
		e.mu.Unlock()
		return ErrIllegalState
	}
	e.clearRoundLocked()
	if e.roundIndex >= e.rounds {
		e.phase = PhaseGameOver
		e.logger.Info("session_over", zap.String("session_id", e.sessionID), zap.String("reason", "rounds_played"), zap.Int("score", e.score))
	} else if !e.loadRoundLocked() {
		e.logger.Info("session_over", zap.String("session_id", e.sessionID), zap.String("reason", "pool_exhausted"), zap.Int("score", e.score))
	}
	v := e.commitLocked()
	e.mu.Unlock()
	e.publish(v)
	return nil
}

// Restart appends the finished game to the store and starts a new session.
// Store failures are logged and do not prevent the new session.
func (e *Engine) Restart(ctx context.Context) error {
	e.mu.Lock()
	if e.phase != PhaseGameOver {
		e.mu.Unlock()
		return ErrIllegalState
	}
	rec := scorelog.NewRecord(e.sessionID, e.score, e.MaxScore())
	// leave GameOver now so a concurrent Restart cannot append twice
	e.phase = PhasePrefetching
	e.mu.Unlock()

	if e.store != nil {
		if err := e.store.Append(ctx, rec); err != nil {
			e.logger.Warn("store_append_failed", zap.String("session_id", rec.SessionID), zap.Int("score", rec.Score), zap.Error(err))
		} else {
			e.logger.Info("score_recorded", zap.String("record_id", rec.ID), zap.String("session_id", rec.SessionID), zap.Int("score", rec.Score), zap.Int("max_score", rec.MaxScore))
		}
	}
	return e.StartGame(ctx)
}

// Snapshot returns the current read model.
func (e *Engine) Snapshot() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe registers fn to receive a View after every transition. fn runs
// synchronously on the goroutine that made the transition.
func (e *Engine) Subscribe(fn func(View)) int {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.nextSub++
	e.subs = append(e.subs, subscriber{id: e.nextSub, fn: fn})
	return e.nextSub
}

func (e *Engine) Unsubscribe(id int) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for i, s := range e.subs {
		if s.id == id {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			return
		}
	}
}

func (e *Engine) publish(v View) {
	e.subMu.RLock()
	subs := append([]subscriber(nil), e.subs...)
	e.subMu.RUnlock()
	for _, s := range subs {
		s.fn(v)
	}
}

// loadRoundLocked pops the next three artworks. It returns false and enters
// GameOver when fewer than three remain.
func (e *Engine) loadRoundLocked() bool {
	if len(e.pool) < OptionsPerRound {
		e.phase = PhaseGameOver
		e.clearRoundLocked()
		return false
	}
	picked := e.pool[:OptionsPerRound:OptionsPerRound]
	e.pool = e.pool[OptionsPerRound:]

	target := picked[0]
	options := append([]domain.Artwork(nil), picked...)
	e.rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	e.roundIndex++
	e.target = &target
	e.options = options
	e.step = StepArtist
	e.staged = staged{}
	e.details = nil
	e.roundPoints = 0
	e.phase = PhaseInRound
	e.logger.Debug("round_loaded", zap.String("session_id", e.sessionID), zap.Int("round", e.roundIndex), zap.Int64("target_id", int64(target.ID)), zap.Int("pool_remaining", len(e.pool)))
	return true
}

// scoreRoundLocked compares staged answers with the target by field value,
// not by artwork identity.
func (e *Engine) scoreRoundLocked() {
	t := e.target
	year := ""
	if e.staged.set[StepYear] {
		year = (domain.Artwork{Year: e.staged.year}).Label(domain.FieldYear)
	}
	e.details = []ScoreDetail{
		{Field: domain.FieldArtist, UserAnswer: e.staged.artist, CorrectAnswer: t.Artist, Correct: e.staged.set[StepArtist] && e.staged.artist == t.Artist},
		{Field: domain.FieldTitle, UserAnswer: e.staged.title, CorrectAnswer: t.Title, Correct: e.staged.set[StepTitle] && e.staged.title == t.Title},
		{Field: domain.FieldYear, UserAnswer: year, CorrectAnswer: t.Label(domain.FieldYear), Correct: e.staged.set[StepYear] && e.staged.year == t.Year},
	}
	points := 0
	for _, d := range e.details {
		if d.Correct {
			points++
		}
	}
	e.roundPoints = points
	e.score += points
	e.logger.Info("round_scored", zap.String("session_id", e.sessionID), zap.Int("round", e.roundIndex), zap.Int("points", points), zap.Int("score", e.score))
}

func (e *Engine) clearRoundLocked() {
	e.target = nil
	e.options = nil
	e.staged = staged{}
	e.details = nil
	e.step = StepArtist
}

func (e *Engine) optionLocked(id domain.ArtworkID) (domain.Artwork, bool) {
	for _, o := range e.options {
		if o.ID == id {
			return o, true
		}
	}
	return domain.Artwork{}, false
}

// commitLocked marks a transition and returns its snapshot.
func (e *Engine) commitLocked() View {
	e.version++
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() View {
	v := View{
		Version:       e.version,
		SessionID:     e.sessionID,
		Phase:         e.phase,
		Step:          e.step,
		RoundIndex:    e.roundIndex,
		Rounds:        e.rounds,
		Score:         e.score,
		MaxScore:      e.MaxScore(),
		RoundPoints:   e.roundPoints,
		PoolRemaining: len(e.pool),
	}
	if e.target != nil {
		t := *e.target
		v.Target = &t
	}
	if len(e.options) > 0 {
		v.Options = append([]domain.Artwork(nil), e.options...)
	}
	if len(e.details) > 0 {
		v.Details = append([]ScoreDetail(nil), e.details...)
	}
	return v
}

// distinct drops repeated ids, keeping the first occurrence.
func distinct(pool []domain.Artwork) []domain.Artwork {
	seen := make(map[domain.ArtworkID]struct{}, len(pool))
	out := make([]domain.Artwork, 0, len(pool))
	for _, a := range pool {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}
