package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/Terapyy18/ArtGuessr/internal/adapter/quizpresenter"
	"github.com/Terapyy18/ArtGuessr/internal/facade"
	"github.com/Terapyy18/ArtGuessr/pkg/quizdto"
)

var errQuit = errors.New("quit")

// terminal drives the facade from text commands, one per line.
type terminal struct {
	ui        *facade.Facade
	format    *quizpresenter.Formatter
	presenter *quizpresenter.Presenter
	rounds    int
}

func newTerminal(ui *facade.Facade, f *quizpresenter.Formatter, out io.Writer, rounds int) *terminal {
	p := quizpresenter.NewPresenter(f, func(text string) error {
		_, err := io.WriteString(out, text+"\n\n")
		return err
	})
	return &terminal{ui: ui, format: f, presenter: p, rounds: rounds}
}

// run reads commands until EOF, "quitter" or ctx cancellation.
func (t *terminal) run(ctx context.Context, in io.Reader) error {
	sub := t.ui.Subscribe(func(v quizdto.PlayView) { _ = t.presenter.Play(v) })
	defer t.ui.Unsubscribe(sub)

	_ = t.presenter.Home(t.rounds)
	_ = t.presenter.Text(t.format.Help())

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if err := t.handle(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				_ = t.presenter.Text(t.format.Error(err))
			}
		}
	}
}

func (t *terminal) handle(ctx context.Context, line string) error {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
	if len(fields) == 0 {
		return nil
	}
	switch cmd, args := fields[0], fields[1:]; cmd {
	case "start", "s", "jouer":
		return t.ui.Start(ctx)
	case "1", "2", "3":
		n, _ := strconv.Atoi(cmd)
		opts := t.ui.View().Options
		if n > len(opts) {
			return t.ui.HandleSelection(0)
		}
		return t.ui.HandleSelection(opts[n-1].ArtworkID)
	case "ok", "continuer":
		return t.ui.DismissPopup()
	case "rejouer", "r":
		return t.ui.SaveScoreAndRestart(ctx)
	case "historique", "h":
		if err := t.ui.SelectTab(ctx, quizdto.TabHistory); err != nil {
			return err
		}
		return t.showHistory(ctx)
	case "suppr", "d":
		indices := make([]int, 0, len(args))
		for _, a := range args {
			n, err := strconv.Atoi(a)
			if err != nil || n < 1 {
				return quizdto.DomainError{Code: quizdto.CodeBadRequest, Message: t.format.Unknown(line)}
			}
			indices = append(indices, n-1)
		}
		if err := t.ui.DeleteHistory(ctx, indices); err != nil {
			return err
		}
		_ = t.presenter.Text(t.format.Deleted(len(indices)))
		return t.showHistory(ctx)
	case "accueil":
		if err := t.ui.SelectTab(ctx, quizdto.TabHome); err != nil {
			return err
		}
		return t.presenter.Home(t.rounds)
	case "aide", "help", "?":
		return t.presenter.Text(t.format.Help())
	case "quitter", "q", "exit":
		return errQuit
	default:
		return t.presenter.Text(t.format.Unknown(line))
	}
}

func (t *terminal) showHistory(ctx context.Context) error {
	h, err := t.ui.History(ctx)
	if err != nil {
		return err
	}
	return t.presenter.History(h)
}
