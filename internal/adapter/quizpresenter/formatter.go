package quizpresenter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Terapyy18/ArtGuessr/internal/msgcat"
	"github.com/Terapyy18/ArtGuessr/pkg/quizdto"
)

const (
	markCorrect = "✓"
	markWrong   = "✗"
	dateLayout  = "02/01/2006 15:04"
)

// Formatter renders facade views as terminal text.
type Formatter struct {
	msgs *msgcat.Catalog
}

func NewFormatter(msgs *msgcat.Catalog) *Formatter {
	if msgs == nil {
		msgs = msgcat.MustDefault()
	}
	return &Formatter{msgs: msgs}
}

func (f *Formatter) Home(rounds int) string {
	var sb strings.Builder
	sb.WriteString("🎨 ")
	sb.WriteString(f.msgs.Text("app.name", nil))
	sb.WriteString("\n")
	sb.WriteString(f.msgs.Text("app.tagline", nil))
	sb.WriteString("\n\n• ")
	sb.WriteString(f.msgs.Text("home.mode", nil))
	sb.WriteString("\n  ")
	sb.WriteString(f.msgs.Text("home.rules", map[string]int{"Rounds": rounds}))
	sb.WriteString("\n\n> start : ")
	sb.WriteString(f.msgs.Text("home.start", nil))
	return sb.String()
}

func (f *Formatter) Help() string {
	return f.msgs.Text("cli.help", nil)
}

func (f *Formatter) Unknown(input string) string {
	return f.msgs.Text("cli.unknown", map[string]string{"Input": input})
}

// Play renders whichever part of the play screen is active.
func (f *Formatter) Play(v quizdto.PlayView) string {
	switch {
	case v.Loading:
		return "⏳ " + f.msgs.Text("play.loading", nil)
	case v.GameOver:
		return f.gameOver(v)
	case v.Popup != nil:
		return f.popup(v)
	case len(v.Options) > 0:
		return f.question(v)
	default:
		return ""
	}
}

func (f *Formatter) question(v quizdto.PlayView) string {
	var sb strings.Builder
	sb.WriteString(f.msgs.Text("play.status", map[string]int{"Round": v.Round, "Rounds": v.Rounds, "Score": v.Score}))
	sb.WriteString("\n")
	if v.ImageAvailable {
		sb.WriteString("🖼  ")
		sb.WriteString(v.ImageURL)
	} else {
		sb.WriteString("🖼  [")
		sb.WriteString(f.msgs.Text("play.image_unavailable", nil))
		sb.WriteString("]")
	}
	sb.WriteString("\n\n")
	sb.WriteString(v.Question)
	sb.WriteString("\n")
	for i, o := range v.Options {
		sb.WriteString(fmt.Sprintf("  %d) %s\n", i+1, o.Label))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (f *Formatter) popup(v quizdto.PlayView) string {
	p := v.Popup
	var sb strings.Builder
	sb.WriteString(p.Title)
	sb.WriteString("  ")
	sb.WriteString(f.msgs.Text("popup.points", map[string]int{"Points": p.Points}))
	sb.WriteString("\n")
	for _, l := range p.Lines {
		mark := markWrong
		if l.Correct {
			mark = markCorrect
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", mark, l.FieldName))
		sb.WriteString("   ")
		sb.WriteString(f.msgs.Text("popup.user_answer", map[string]string{"Answer": l.UserAnswer}))
		sb.WriteString("\n")
		if !l.Correct {
			sb.WriteString("   ")
			sb.WriteString(f.msgs.Text("popup.correct_answer", map[string]string{"Answer": l.CorrectAnswer}))
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n> ok : ")
	sb.WriteString(f.msgs.Text("popup.continue", nil))
	return sb.String()
}

func (f *Formatter) gameOver(v quizdto.PlayView) string {
	var sb strings.Builder
	sb.WriteString("🏁 ")
	sb.WriteString(f.msgs.Text("gameover.title", nil))
	sb.WriteString("\n")
	sb.WriteString(f.msgs.Text("gameover.final", nil))
	sb.WriteString(" ")
	sb.WriteString(f.msgs.Text("gameover.score", map[string]int{"Score": v.Score, "MaxScore": v.MaxScore}))
	sb.WriteString("\n\n> rejouer : ")
	sb.WriteString(f.msgs.Text("gameover.restart", nil))
	return sb.String()
}

func (f *Formatter) History(h quizdto.HistoryView) string {
	var sb strings.Builder
	sb.WriteString("🏆 ")
	sb.WriteString(f.msgs.Text("history.title", nil))
	sb.WriteString("\n")
	if len(h.Entries) == 0 {
		empty := h.Empty
		if empty == "" {
			empty = f.msgs.Text("history.empty", nil)
		}
		sb.WriteString(empty)
		return sb.String()
	}
	for _, e := range h.Entries {
		mark := "·"
		if e.Good {
			mark = "★"
		}
		row := f.msgs.Text("history.row", map[string]any{
			"Date":     e.Date.Local().Format(dateLayout),
			"Score":    e.Score,
			"MaxScore": e.MaxScore,
		})
		sb.WriteString(fmt.Sprintf("%2d %s %s\n", e.Index+1, mark, row))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (f *Formatter) Deleted(n int) string {
	return f.msgs.Text("history.deleted", map[string]int{"Count": n})
}

// Error renders err for the player. Domain errors with a catalogue entry
// ("error.<code>") use it; others keep their own message.
func (f *Formatter) Error(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	var de quizdto.DomainError
	if errors.As(err, &de) {
		if key := "error." + de.Code; de.Code != "" && f.msgs.Has(key) {
			msg = f.msgs.Text(key, nil)
		}
	}
	return "⚠️ " + msg
}
