package quizpresenter

import (
	"strings"
	"sync"

	"github.com/Terapyy18/ArtGuessr/pkg/quizdto"
)

// Presenter writes formatted screens through a sink without knowing about the terminal.
// Play views are printed once per version.
type Presenter struct {
	f    *Formatter
	send func(text string) error

	mu          sync.Mutex
	lastVersion uint64
	lastText    string
}

func NewPresenter(f *Formatter, send func(text string) error) *Presenter {
	return &Presenter{f: f, send: send}
}

func (p *Presenter) Play(v quizdto.PlayView) error {
	if p == nil || p.send == nil || v.Tab != quizdto.TabPlay {
		return nil
	}
	text := p.f.Play(v)
	p.mu.Lock()
	if v.Version == p.lastVersion && text == p.lastText {
		p.mu.Unlock()
		return nil
	}
	p.lastVersion = v.Version
	p.lastText = text
	p.mu.Unlock()
	return p.Text(text)
}

func (p *Presenter) History(h quizdto.HistoryView) error {
	return p.Text(p.f.History(h))
}

func (p *Presenter) Home(rounds int) error {
	return p.Text(p.f.Home(rounds))
}

func (p *Presenter) Text(text string) error {
	if p == nil || p.send == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	return p.send(text)
}
