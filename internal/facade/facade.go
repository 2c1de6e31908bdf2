package facade

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Terapyy18/ArtGuessr/internal/domain"
	"github.com/Terapyy18/ArtGuessr/internal/engine"
	"github.com/Terapyy18/ArtGuessr/internal/msgcat"
	"github.com/Terapyy18/ArtGuessr/internal/scorelog"
	"github.com/Terapyy18/ArtGuessr/pkg/quizdto"
)

// Engine is the part of the round engine the facade drives.
type Engine interface {
	StartGame(ctx context.Context) error
	ChooseOption(id domain.ArtworkID) error
	AcknowledgeRound() error
	Restart(ctx context.Context) error
	Snapshot() engine.View
	Subscribe(fn func(engine.View)) int
	Unsubscribe(id int)
}

// History is the read and delete side of the score log.
type History interface {
	ListNewestFirst(ctx context.Context) ([]domain.ScoreRecord, error)
	DeleteAt(ctx context.Context, indices []int) error
}

// Facade turns engine snapshots into what a screen shows and forwards
// player commands. It also owns the selected tab.
type Facade struct {
	eng     Engine
	history History
	msgs    *msgcat.Catalog
	logger  *zap.Logger

	mu  sync.Mutex
	tab quizdto.Tab

	subMu   sync.RWMutex
	subs    map[int]func(quizdto.PlayView)
	nextSub int
	engSub  int
}

type Option func(*Facade)

func WithLogger(l *zap.Logger) Option {
	return func(f *Facade) {
		if l != nil {
			f.logger = l
		}
	}
}

func New(eng Engine, history History, msgs *msgcat.Catalog, opts ...Option) *Facade {
	if msgs == nil {
		msgs = msgcat.MustDefault()
	}
	f := &Facade{
		eng:     eng,
		history: history,
		msgs:    msgs,
		logger:  zap.NewNop(),
		tab:     quizdto.TabHome,
		subs:    make(map[int]func(quizdto.PlayView)),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.engSub = eng.Subscribe(f.onEngineChange)
	return f
}

// Close detaches the facade from the engine.
func (f *Facade) Close() {
	f.eng.Unsubscribe(f.engSub)
}

// QuestionText is the prompt for the current step.
func (f *Facade) QuestionText() string {
	return f.questionFor(f.eng.Snapshot().Step)
}

// ButtonLabel is the text shown for option at the current step.
func (f *Facade) ButtonLabel(option domain.Artwork) string {
	return option.Label(f.eng.Snapshot().Step.Field())
}

// ScoreDetails is the popup content of the latest scored round, empty outside AwaitingAck.
func (f *Facade) ScoreDetails() []quizdto.ScoreLine {
	return f.scoreLines(f.eng.Snapshot())
}

func (f *Facade) HandleSelection(id int64) error {
	return f.command("select", f.eng.ChooseOption(domain.ArtworkID(id)))
}

func (f *Facade) DismissPopup() error {
	return f.command("dismiss", f.eng.AcknowledgeRound())
}

// SaveScoreAndRestart records the finished game and begins the next one.
// A restart overtaken by a newer start is not an error.
func (f *Facade) SaveScoreAndRestart(ctx context.Context) error {
	err := f.eng.Restart(ctx)
	if errors.Is(err, engine.ErrSuperseded) {
		return nil
	}
	return f.command("restart", err)
}

// Start is the home screen action: it switches to the play tab and starts a
// game unless one is already running.
func (f *Facade) Start(ctx context.Context) error {
	return f.SelectTab(ctx, quizdto.TabPlay)
}

// SelectTab changes the visible screen. Opening the play tab with no game
// running starts one.
func (f *Facade) SelectTab(ctx context.Context, tab quizdto.Tab) error {
	switch tab {
	case quizdto.TabHome, quizdto.TabPlay, quizdto.TabHistory:
	default:
		return quizdto.DomainError{Code: quizdto.CodeBadRequest, Message: fmt.Sprintf("unknown tab %q", tab)}
	}
	f.mu.Lock()
	changed := f.tab != tab
	f.tab = tab
	f.mu.Unlock()
	if changed {
		f.broadcast(f.project(f.eng.Snapshot()))
	}
	if tab == quizdto.TabPlay && f.eng.Snapshot().Phase == engine.PhaseIdle {
		err := f.eng.StartGame(ctx)
		if errors.Is(err, engine.ErrSuperseded) {
			return nil
		}
		return f.command("start", err)
	}
	return nil
}

func (f *Facade) Tab() quizdto.Tab {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tab
}

// View projects the current engine state.
func (f *Facade) View() quizdto.PlayView {
	return f.project(f.eng.Snapshot())
}

// History lists the score log newest first. Row indices are what DeleteHistory expects.
func (f *Facade) History(ctx context.Context) (quizdto.HistoryView, error) {
	if f.history == nil {
		return quizdto.HistoryView{Empty: f.msgs.Text("history.empty", nil)}, nil
	}
	recs, err := f.history.ListNewestFirst(ctx)
	if err != nil {
		f.logger.Warn("history_list_failed", zap.Error(err))
		return quizdto.HistoryView{}, toDomainError(err)
	}
	view := quizdto.HistoryView{Entries: make([]quizdto.HistoryEntry, 0, len(recs))}
	for i, r := range recs {
		view.Entries = append(view.Entries, quizdto.HistoryEntry{
			Index:    i,
			ID:       r.ID,
			Date:     r.Date,
			Score:    r.Score,
			MaxScore: r.MaxScore,
			Good:     r.Good(),
		})
	}
	if len(view.Entries) == 0 {
		view.Empty = f.msgs.Text("history.empty", nil)
	}
	return view, nil
}

func (f *Facade) DeleteHistory(ctx context.Context, indices []int) error {
	if f.history == nil || len(indices) == 0 {
		return nil
	}
	if err := f.history.DeleteAt(ctx, indices); err != nil {
		f.logger.Warn("history_delete_failed", zap.Ints("indices", indices), zap.Error(err))
		return toDomainError(err)
	}
	f.logger.Info("history_deleted", zap.Ints("indices", indices))
	return nil
}

// Subscribe registers fn for every projected view change.
func (f *Facade) Subscribe(fn func(quizdto.PlayView)) int {
	f.subMu.Lock()
	defer f.subMu.Unlock()
	f.nextSub++
	f.subs[f.nextSub] = fn
	return f.nextSub
}

func (f *Facade) Unsubscribe(id int) {
	f.subMu.Lock()
	defer f.subMu.Unlock()
	delete(f.subs, id)
}

func (f *Facade) onEngineChange(v engine.View) {
	f.broadcast(f.project(v))
}

func (f *Facade) broadcast(pv quizdto.PlayView) {
	f.subMu.RLock()
	fns := make([]func(quizdto.PlayView), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.subMu.RUnlock()
	for _, fn := range fns {
		fn(pv)
	}
}

func (f *Facade) project(v engine.View) quizdto.PlayView {
	pv := quizdto.PlayView{
		Version:   v.Version,
		SessionID: v.SessionID,
		Tab:       f.Tab(),
		Phase:     string(v.Phase),
		Loading:   v.Phase == engine.PhasePrefetching,
		GameOver:  v.GameOver(),
		Round:     v.RoundIndex,
		Rounds:    v.Rounds,
		Score:     v.Score,
		MaxScore:  v.MaxScore,
	}
	if v.Target != nil {
		pv.ImageURL = v.Target.ImageURL
		pv.ImageAvailable = v.Target.ImageURL != ""
	}
	if v.Phase == engine.PhaseInRound {
		pv.Question = f.questionFor(v.Step)
		field := v.Step.Field()
		pv.Options = make([]quizdto.OptionButton, 0, len(v.Options))
		for _, o := range v.Options {
			pv.Options = append(pv.Options, quizdto.OptionButton{ArtworkID: int64(o.ID), Label: o.Label(field)})
		}
	}
	if v.PopupVisible() {
		title := f.msgs.Text("popup.done", nil)
		if v.RoundPoints == engine.PointsPerRound {
			title = f.msgs.Text("popup.perfect", nil)
		}
		pv.Popup = &quizdto.Popup{Title: title, Points: v.RoundPoints, Lines: f.scoreLines(v)}
	}
	return pv
}

func (f *Facade) scoreLines(v engine.View) []quizdto.ScoreLine {
	if !v.PopupVisible() {
		return nil
	}
	lines := make([]quizdto.ScoreLine, 0, len(v.Details))
	for _, d := range v.Details {
		lines = append(lines, quizdto.ScoreLine{
			Field:         string(d.Field),
			FieldName:     f.msgs.Text("field."+string(d.Field), nil),
			UserAnswer:    d.UserAnswer,
			CorrectAnswer: d.CorrectAnswer,
			Correct:       d.Correct,
		})
	}
	return lines
}

func (f *Facade) questionFor(s engine.Step) string {
	return f.msgs.Text("question."+s.String(), nil)
}

// command logs ignored commands at debug and converts engine errors for the UI.
func (f *Facade) command(name string, err error) error {
	if err == nil {
		return nil
	}
	f.logger.Debug("command_ignored", zap.String("command", name), zap.Error(err))
	return toDomainError(err)
}

func toDomainError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrIllegalState):
		return quizdto.DomainError{Code: quizdto.CodeIllegalState, Message: err.Error()}
	case errors.Is(err, engine.ErrUnknownOption):
		return quizdto.DomainError{Code: quizdto.CodeUnknownOption, Message: err.Error()}
	case errors.Is(err, scorelog.ErrStore):
		return quizdto.DomainError{Code: quizdto.CodeStore, Message: err.Error()}
	default:
		return quizdto.DomainError{Code: quizdto.CodeInternal, Message: err.Error()}
	}
}
