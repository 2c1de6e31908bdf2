package quizpresenter

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Terapyy18/ArtGuessr/pkg/quizdto"
)

func TestQuestionScreen(t *testing.T) {
	f := NewFormatter(nil)
	out := f.Play(quizdto.PlayView{
		Tab: quizdto.TabPlay, Round: 2, Rounds: 10, Score: 4,
		Question:       "Qui est l'artiste ?",
		ImageURL:       "https://images.example/1.jpg",
		ImageAvailable: true,
		Options: []quizdto.OptionButton{
			{ArtworkID: 1, Label: "Van Gogh"},
			{ArtworkID: 2, Label: "Monet"},
			{ArtworkID: 3, Label: "Dalí"},
		},
	})
	assert.Contains(t, out, "Round 2/10 · Score: 4")
	assert.Contains(t, out, "https://images.example/1.jpg")
	assert.Contains(t, out, "Qui est l'artiste ?")
	assert.Contains(t, out, "  1) Van Gogh\n  2) Monet\n  3) Dalí")
}

func TestImagePlaceholder(t *testing.T) {
	out := NewFormatter(nil).Play(quizdto.PlayView{
		Question: "Qui est l'artiste ?",
		Options:  []quizdto.OptionButton{{ArtworkID: 1, Label: "A"}},
	})
	assert.Contains(t, out, "[image indisponible]")
}

func TestPopupScreen(t *testing.T) {
	out := NewFormatter(nil).Play(quizdto.PlayView{Popup: &quizdto.Popup{
		Title:  "Terminé !",
		Points: 2,
		Lines: []quizdto.ScoreLine{
			{FieldName: "Artiste", UserAnswer: "Monet", CorrectAnswer: "Van Gogh"},
			{FieldName: "Titre", UserAnswer: "Starry Night", CorrectAnswer: "Starry Night", Correct: true},
		},
	}})
	assert.True(t, strings.HasPrefix(out, "Terminé !  2 / 3"))
	assert.Contains(t, out, "✗ Artiste\n   Ta réponse : Monet\n   Vraie réponse : Van Gogh")
	assert.Contains(t, out, "✓ Titre\n   Ta réponse : Starry Night\n")
	assert.NotContains(t, out, "Vraie réponse : Starry Night")
}

func TestGameOverAndLoading(t *testing.T) {
	f := NewFormatter(nil)
	assert.Contains(t, f.Play(quizdto.PlayView{GameOver: true, Score: 17, MaxScore: 30}), "Votre score final est de 17 / 30")
	assert.Contains(t, f.Play(quizdto.PlayView{Loading: true}), "Chargement de la peinture...")
	assert.Empty(t, f.Play(quizdto.PlayView{}))
}

func TestHistoryScreen(t *testing.T) {
	f := NewFormatter(nil)
	assert.Contains(t, f.History(quizdto.HistoryView{}), "Aucun historique. Lance une partie !")

	d := time.Date(2026, 5, 4, 10, 30, 0, 0, time.Local)
	out := f.History(quizdto.HistoryView{Entries: []quizdto.HistoryEntry{
		{Index: 0, Date: d, Score: 20, MaxScore: 30, Good: true},
		{Index: 1, Date: d.Add(-time.Hour), Score: 3, MaxScore: 30},
	}})
	assert.Contains(t, out, " 1 ★ 04/05/2026 10:30  20 points / 30")
	assert.Contains(t, out, " 2 · 04/05/2026 09:30  3 points / 30")
}

func TestPresenterDedupesByVersion(t *testing.T) {
	var sent []string
	p := NewPresenter(NewFormatter(nil), func(text string) error {
		sent = append(sent, text)
		return nil
	})
	v := quizdto.PlayView{Version: 3, Tab: quizdto.TabPlay, Loading: true}
	assert.NoError(t, p.Play(v))
	assert.NoError(t, p.Play(v))
	assert.NoError(t, p.Play(quizdto.PlayView{Version: 4, Tab: quizdto.TabHistory, Loading: true}))
	assert.Len(t, sent, 1)

	assert.NoError(t, p.Text("   "))
	assert.Len(t, sent, 1)
}

func TestErrorUsesCatalogueForDomainCodes(t *testing.T) {
	f := NewFormatter(nil)
	assert.Equal(t, "⚠️ Action impossible pour le moment.",
		f.Error(quizdto.DomainError{Code: quizdto.CodeIllegalState, Message: "command not allowed in current phase"}))
	assert.Equal(t, "⚠️ Ce choix ne fait pas partie de la question.",
		f.Error(fmt.Errorf("select: %w", quizdto.DomainError{Code: quizdto.CodeUnknownOption})))
	assert.Equal(t, "⚠️ Le scoreboard est indisponible.",
		f.Error(quizdto.DomainError{Code: quizdto.CodeStore, Message: "score log store error: list: boom"}))
	assert.Equal(t, "⚠️ Commande inconnue : suppr x",
		f.Error(quizdto.DomainError{Code: quizdto.CodeBadRequest, Message: "Commande inconnue : suppr x"}))
	assert.Equal(t, "⚠️ disk full", f.Error(errors.New("disk full")))
	assert.Empty(t, f.Error(nil))
}
