package engine

import (
	"errors"

	"github.com/Terapyy18/ArtGuessr/internal/domain"
)

// Phase is the session lifecycle state.
type Phase string

const (
	PhaseIdle        Phase = "IDLE"
	PhasePrefetching Phase = "PREFETCHING"
	PhaseInRound     Phase = "IN_ROUND"
	PhaseAwaitingAck Phase = "AWAITING_ACK"
	PhaseGameOver    Phase = "GAME_OVER"
)

// Step is the question being asked inside a round.
type Step int

const (
	StepArtist Step = iota
	StepTitle
	StepYear
)

func (s Step) Field() domain.Field {
	switch s {
	case StepTitle:
		return domain.FieldTitle
	case StepYear:
		return domain.FieldYear
	default:
		return domain.FieldArtist
	}
}

func (s Step) String() string { return string(s.Field()) }

const (
	DefaultRounds   = 10
	PointsPerRound  = 3
	OptionsPerRound = 3
)

var (
	// ErrIllegalState is returned for commands the current phase ignores.
	ErrIllegalState = errors.New("command not allowed in current phase")
	// ErrUnknownOption is returned when the chosen artwork is not one of the round's options.
	ErrUnknownOption = errors.New("artwork is not an option of the current round")
	// ErrSuperseded is returned by a StartGame whose prefetch finished after a newer session began.
	ErrSuperseded = errors.New("session superseded by a newer start")
)

// ScoreDetail is one line of the acknowledgement popup.
type ScoreDetail struct {
	Field         domain.Field
	UserAnswer    string
	CorrectAnswer string
	Correct       bool
}

// View is an immutable snapshot of the session, published after every transition.
type View struct {
	Version       uint64
	SessionID     string
	Phase         Phase
	Step          Step
	RoundIndex    int
	Rounds        int
	Score         int
	MaxScore      int
	RoundPoints   int
	Target        *domain.Artwork
	Options       []domain.Artwork
	Details       []ScoreDetail
	PoolRemaining int
}

func (v View) GameOver() bool     { return v.Phase == PhaseGameOver }
func (v View) PopupVisible() bool { return v.Phase == PhaseAwaitingAck }
