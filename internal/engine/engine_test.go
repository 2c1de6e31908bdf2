package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/Terapyy18/ArtGuessr/internal/domain"
	"github.com/Terapyy18/ArtGuessr/internal/prefetch"
)

type fakePrefetcher struct {
	mu    sync.Mutex
	calls int
	run   func(ctx context.Context, call int) ([]domain.Artwork, error)
}

func (f *fakePrefetcher) Run(ctx context.Context) ([]domain.Artwork, prefetch.Stats, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	pool, err := f.run(ctx, call)
	return append([]domain.Artwork(nil), pool...), prefetch.Stats{Playable: len(pool)}, err
}

func poolOf(pool ...domain.Artwork) *fakePrefetcher {
	return &fakePrefetcher{run: func(ctx context.Context, call int) ([]domain.Artwork, error) { return pool, nil }}
}

type recordingStore struct {
	mu      sync.Mutex
	records []domain.ScoreRecord
	err     error
}

func (s *recordingStore) Append(ctx context.Context, rec domain.ScoreRecord) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	return nil
}

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// identity keeps the pool and options in the order they were produced.
type identity struct{}

func (identity) Shuffle(n int, swap func(i, j int)) {}

var (
	starryNight = domain.Artwork{ID: 1, ImageURL: "https://images.example/1.jpg", Title: "Starry Night", Artist: "Van Gogh", Year: 1889}
	waterLilies = domain.Artwork{ID: 2, ImageURL: "https://images.example/2.jpg", Title: "Water Lilies", Artist: "Monet", Year: 1890}
	persistence = domain.Artwork{ID: 3, ImageURL: "https://images.example/3.jpg", Title: "The Persistence of Memory", Artist: "Dalí", Year: 1931}
)

func mustStart(t *testing.T, e *Engine) View {
	t.Helper()
	if err := e.StartGame(context.Background()); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	return e.Snapshot()
}

func mustChoose(t *testing.T, e *Engine, id domain.ArtworkID) {
	t.Helper()
	if err := e.ChooseOption(id); err != nil {
		t.Fatalf("ChooseOption(%d): %v", id, err)
	}
}

func TestRoundTwoOfThree(t *testing.T) {
	e := New(poolOf(starryNight, waterLilies, persistence), &recordingStore{}, WithShuffler(identity{}))
	v := mustStart(t, e)
	if v.Phase != PhaseInRound || v.Step != StepArtist || v.RoundIndex != 1 {
		t.Fatalf("unexpected start view: %+v", v)
	}
	if v.Target == nil || v.Target.ID != 1 {
		t.Fatalf("expected target 1, got %+v", v.Target)
	}

	mustChoose(t, e, 2)
	if e.Snapshot().Step != StepTitle {
		t.Fatalf("expected title step")
	}
	mustChoose(t, e, 1)
	if e.Snapshot().Step != StepYear {
		t.Fatalf("expected year step")
	}
	mustChoose(t, e, 1)

	v = e.Snapshot()
	if !v.PopupVisible() || v.RoundPoints != 2 || v.Score != 2 {
		t.Fatalf("expected 2 points with popup, got %+v", v)
	}
	want := []ScoreDetail{
		{Field: domain.FieldArtist, UserAnswer: "Monet", CorrectAnswer: "Van Gogh", Correct: false},
		{Field: domain.FieldTitle, UserAnswer: "Starry Night", CorrectAnswer: "Starry Night", Correct: true},
		{Field: domain.FieldYear, UserAnswer: "1889", CorrectAnswer: "1889", Correct: true},
	}
	if len(v.Details) != len(want) {
		t.Fatalf("expected %d details, got %d", len(want), len(v.Details))
	}
	for i := range want {
		if v.Details[i] != want[i] {
			t.Fatalf("detail %d = %+v, want %+v", i, v.Details[i], want[i])
		}
	}
}

func TestRoundAllCorrect(t *testing.T) {
	e := New(poolOf(starryNight, waterLilies, persistence), nil, WithShuffler(identity{}))
	mustStart(t, e)
	for i := 0; i < 3; i++ {
		mustChoose(t, e, 1)
	}
	v := e.Snapshot()
	if v.RoundPoints != 3 || v.Score != 3 {
		t.Fatalf("expected 3 points, got round=%d total=%d", v.RoundPoints, v.Score)
	}
}

func TestFieldCollisionCountsAsCorrect(t *testing.T) {
	sameYear := waterLilies
	sameYear.Year = 1889
	e := New(poolOf(starryNight, sameYear, persistence), nil, WithShuffler(identity{}))
	mustStart(t, e)

	mustChoose(t, e, 3) // artist wrong
	mustChoose(t, e, 1) // title right
	mustChoose(t, e, 2) // distractor carrying the target's year

	v := e.Snapshot()
	if v.RoundPoints != 2 {
		t.Fatalf("expected 2 points, got %d", v.RoundPoints)
	}
	if !v.Details[2].Correct || v.Details[0].Correct {
		t.Fatalf("unexpected details %+v", v.Details)
	}
}

func TestEmptyPoolGameOver(t *testing.T) {
	store := &recordingStore{}
	e := New(poolOf(), store)
	v := mustStart(t, e)
	if !v.GameOver() || v.Score != 0 || v.RoundIndex != 0 || v.Target != nil {
		t.Fatalf("expected immediate game over, got %+v", v)
	}

	if err := e.Restart(context.Background()); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if store.count() != 1 {
		t.Fatalf("expected one record, got %d", store.count())
	}
	rec := store.records[0]
	if rec.Score != 0 || rec.MaxScore != 30 || rec.SessionID != v.SessionID || rec.ID == "" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestSearchFailureEndsGame(t *testing.T) {
	p := &fakePrefetcher{run: func(ctx context.Context, call int) ([]domain.Artwork, error) {
		return nil, errors.New("catalogue down")
	}}
	v := mustStart(t, New(p, nil))
	if !v.GameOver() || v.Score != 0 {
		t.Fatalf("expected game over, got %+v", v)
	}
}

func TestPoolOfTwoIsImmediateGameOver(t *testing.T) {
	v := mustStart(t, New(poolOf(starryNight, waterLilies), nil))
	if !v.GameOver() || v.RoundIndex != 0 {
		t.Fatalf("expected game over without rounds, got %+v", v)
	}
}

func TestPoolOfThreePlaysOneRound(t *testing.T) {
	e := New(poolOf(starryNight, waterLilies, persistence), nil, WithShuffler(identity{}))
	mustStart(t, e)
	for i := 0; i < 3; i++ {
		mustChoose(t, e, 1)
	}
	if err := e.AcknowledgeRound(); err != nil {
		t.Fatalf("AcknowledgeRound: %v", err)
	}
	v := e.Snapshot()
	if !v.GameOver() || v.RoundIndex != 1 || v.Score != 3 {
		t.Fatalf("expected game over after one round, got %+v", v)
	}
}

func TestAcknowledgeTwiceIsNoop(t *testing.T) {
	pool := numberedPool(9)
	e := New(poolOf(pool...), nil, WithShuffler(identity{}))
	mustStart(t, e)
	for i := 0; i < 3; i++ {
		mustChoose(t, e, e.Snapshot().Target.ID)
	}
	if err := e.AcknowledgeRound(); err != nil {
		t.Fatalf("AcknowledgeRound: %v", err)
	}
	after := e.Snapshot()
	if err := e.AcknowledgeRound(); !errors.Is(err, ErrIllegalState) {
		t.Fatalf("expected ErrIllegalState, got %v", err)
	}
	again := e.Snapshot()
	if again.Version != after.Version || again.RoundIndex != 2 || again.Phase != PhaseInRound {
		t.Fatalf("second acknowledge changed state: %+v vs %+v", again, after)
	}
}

func TestIllegalCommands(t *testing.T) {
	e := New(poolOf(starryNight, waterLilies, persistence), nil, WithShuffler(identity{}))
	if err := e.ChooseOption(1); !errors.Is(err, ErrIllegalState) {
		t.Fatalf("ChooseOption in idle: %v", err)
	}
	if err := e.AcknowledgeRound(); !errors.Is(err, ErrIllegalState) {
		t.Fatalf("AcknowledgeRound in idle: %v", err)
	}
	if err := e.Restart(context.Background()); !errors.Is(err, ErrIllegalState) {
		t.Fatalf("Restart in idle: %v", err)
	}
	if e.Snapshot().Phase != PhaseIdle {
		t.Fatalf("expected idle")
	}

	mustStart(t, e)
	if err := e.ChooseOption(42); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("expected ErrUnknownOption, got %v", err)
	}
	if err := e.Restart(context.Background()); !errors.Is(err, ErrIllegalState) {
		t.Fatalf("Restart in round: %v", err)
	}
	for i := 0; i < 3; i++ {
		mustChoose(t, e, 1)
	}
	if err := e.ChooseOption(1); !errors.Is(err, ErrIllegalState) {
		t.Fatalf("ChooseOption while awaiting ack: %v", err)
	}
	_ = e.AcknowledgeRound()
	if err := e.ChooseOption(1); !errors.Is(err, ErrIllegalState) {
		t.Fatalf("ChooseOption after game over: %v", err)
	}
	if e.Snapshot().Score != 3 {
		t.Fatalf("ignored commands must not change the score")
	}
}

// numberedPool builds artworks whose three fields are all distinct.
func numberedPool(n int) []domain.Artwork {
	out := make([]domain.Artwork, n)
	for i := range out {
		id := domain.ArtworkID(i + 1)
		out[i] = domain.Artwork{
			ID:       id,
			ImageURL: fmt.Sprintf("https://images.example/%d.jpg", id),
			Title:    fmt.Sprintf("Title %d", id),
			Artist:   fmt.Sprintf("Artist %d", id),
			Year:     1500 + int(id),
		}
	}
	return out
}

// fakePool builds n artworks with unique ids and random, possibly colliding, fields.
func fakePool(f *gofakeit.Faker, n int) []domain.Artwork {
	out := make([]domain.Artwork, n)
	for i := range out {
		out[i] = domain.Artwork{
			ID:       domain.ArtworkID(i + 1),
			ImageURL: f.URL(),
			Title:    f.BookTitle(),
			Artist:   f.Name(),
			Year:     f.IntRange(1400, 1950),
		}
	}
	return out
}

// answer picks the target for the first `correct` steps and a distractor after.
func answer(t *testing.T, e *Engine, correct int) {
	t.Helper()
	for step := 0; step < 3; step++ {
		v := e.Snapshot()
		choice := v.Target.ID
		if step >= correct {
			for _, o := range v.Options {
				if o.ID != v.Target.ID {
					choice = o.ID
					break
				}
			}
		}
		mustChoose(t, e, choice)
	}
}

func TestFullSessionMixedResults(t *testing.T) {
	store := &recordingStore{}
	e := New(poolOf(numberedPool(30)...), store, WithShuffler(rand.New(rand.NewPCG(42, 7))))
	mustStart(t, e)

	perRound := []int{3, 2, 0, 1, 3, 2, 1, 0, 2, 3}
	for i, want := range perRound {
		v := e.Snapshot()
		if v.Phase != PhaseInRound || v.RoundIndex != i+1 {
			t.Fatalf("round %d: unexpected view %+v", i+1, v)
		}
		answer(t, e, want)
		if got := e.Snapshot().RoundPoints; got != want {
			t.Fatalf("round %d: points = %d, want %d", i+1, got, want)
		}
		if err := e.AcknowledgeRound(); err != nil {
			t.Fatalf("AcknowledgeRound: %v", err)
		}
	}

	v := e.Snapshot()
	if !v.GameOver() || v.Score != 17 || v.MaxScore != 30 {
		t.Fatalf("expected game over with 17/30, got %+v", v)
	}
	if store.count() != 0 {
		t.Fatalf("no record before restart")
	}
	if err := e.Restart(context.Background()); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if store.count() != 1 || store.records[0].Score != 17 || store.records[0].MaxScore != 30 {
		t.Fatalf("unexpected records %+v", store.records)
	}
	if nv := e.Snapshot(); nv.Score != 0 || nv.RoundIndex != 1 || nv.SessionID == v.SessionID {
		t.Fatalf("restart did not begin a fresh session: %+v", nv)
	}
}

func TestSessionInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 9))
	faker := gofakeit.New(39)
	for game := 0; game < 20; game++ {
		size := rng.IntN(35)
		e := New(poolOf(fakePool(faker, size)...), nil, WithShuffler(rand.New(rand.NewPCG(uint64(game), 1))))
		v := mustStart(t, e)
		rounds := 0
		for !v.GameOver() {
			if len(v.Options) != 3 || v.Target == nil {
				t.Fatalf("round without three options: %+v", v)
			}
			ids := map[domain.ArtworkID]bool{}
			hasTarget := false
			for _, o := range v.Options {
				ids[o.ID] = true
				if o.ID == v.Target.ID {
					hasTarget = true
				}
			}
			if len(ids) != 3 || !hasTarget {
				t.Fatalf("options must be three distinct artworks including the target: %+v", v.Options)
			}
			before := v.Score
			for s := 0; s < 3; s++ {
				mustChoose(t, e, v.Options[rng.IntN(3)].ID)
			}
			scored := e.Snapshot()
			if delta := scored.Score - before; delta < 0 || delta > 3 || delta != scored.RoundPoints {
				t.Fatalf("round delta %d out of range", delta)
			}
			if scored.Score > 3*scored.RoundIndex {
				t.Fatalf("score %d exceeds 3*%d", scored.Score, scored.RoundIndex)
			}
			rounds++
			if err := e.AcknowledgeRound(); err != nil {
				t.Fatalf("AcknowledgeRound: %v", err)
			}
			v = e.Snapshot()
		}
		want := min(size/3, DefaultRounds)
		if rounds != want {
			t.Fatalf("pool %d: played %d rounds, want %d", size, rounds, want)
		}
	}
}

func TestStoreFailureDoesNotBlockRestart(t *testing.T) {
	store := &recordingStore{err: errors.New("disk full")}
	e := New(poolOf(numberedPool(3)...), store, WithShuffler(identity{}))
	mustStart(t, e)
	answer(t, e, 3)
	_ = e.AcknowledgeRound()
	if err := e.Restart(context.Background()); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if v := e.Snapshot(); v.Phase != PhaseInRound || v.Score != 0 {
		t.Fatalf("expected a new session, got %+v", v)
	}
}

func TestAbandonedPrefetchIsDropped(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	p := &fakePrefetcher{run: func(ctx context.Context, call int) ([]domain.Artwork, error) {
		if call == 1 {
			close(entered)
			<-release
			return numberedPool(3), nil
		}
		return numberedPool(30), nil
	}}
	e := New(p, nil)

	first := make(chan error, 1)
	go func() { first <- e.StartGame(context.Background()) }()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("first start never reached prefetch")
	}

	mustStart(t, e)
	second := e.Snapshot()
	close(release)
	if err := <-first; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if v := e.Snapshot(); v.SessionID != second.SessionID || v.PoolRemaining != 27 {
		t.Fatalf("abandoned prefetch leaked into the new session: %+v", v)
	}
}

func TestSubscribersSeeEveryTransition(t *testing.T) {
	e := New(poolOf(starryNight, waterLilies, persistence), nil, WithShuffler(identity{}))
	var (
		mu     sync.Mutex
		phases []Phase
		last   uint64
	)
	id := e.Subscribe(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		if v.Version <= last {
			t.Errorf("version went backwards: %d after %d", v.Version, last)
		}
		last = v.Version
		phases = append(phases, v.Phase)
	})
	mustStart(t, e)
	for i := 0; i < 3; i++ {
		mustChoose(t, e, 1)
	}
	_ = e.AcknowledgeRound()
	e.Unsubscribe(id)
	_ = e.Restart(context.Background())

	want := []Phase{PhasePrefetching, PhaseInRound, PhaseInRound, PhaseInRound, PhaseAwaitingAck, PhaseGameOver}
	mu.Lock()
	defer mu.Unlock()
	if len(phases) != len(want) {
		t.Fatalf("got phases %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("phase %d = %s, want %s", i, phases[i], want[i])
		}
	}
}
