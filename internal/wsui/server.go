package wsui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/Terapyy18/ArtGuessr/pkg/quizdto"
)

// UI is the facade surface exposed over the socket.
type UI interface {
	View() quizdto.PlayView
	Subscribe(fn func(quizdto.PlayView)) int
	Unsubscribe(id int)
	Start(ctx context.Context) error
	HandleSelection(id int64) error
	DismissPopup() error
	SaveScoreAndRestart(ctx context.Context) error
	SelectTab(ctx context.Context, tab quizdto.Tab) error
	History(ctx context.Context) (quizdto.HistoryView, error)
	DeleteHistory(ctx context.Context, indices []int) error
}

type Server struct {
	ui     UI
	logger *zap.Logger

	pingInterval time.Duration
	writeTimeout time.Duration
	origins      []string
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(s *Server) { s.pingInterval = d }
}

// WithOriginPatterns allows cross-origin browsers matching the given host patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.origins = append(s.origins, patterns...) }
}

func NewServer(ui UI, opts ...Option) *Server {
	s := &Server{
		ui:           ui,
		logger:       zap.NewNop(),
		pingInterval: 30 * time.Second,
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("wsui_listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("wsui listen: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		OriginPatterns:  s.origins,
	})
	if err != nil {
		s.logger.Warn("wsui_accept_failed", zap.Error(err))
		return
	}
	c := newClient(s, conn)
	c.run(r.Context())
}

// client is one connected browser. Only the writer goroutine writes to conn.
// State pushes are coalesced so a slow client always ends on the latest view.
type client struct {
	s    *Server
	conn *websocket.Conn

	mu      sync.Mutex
	pending *quizdto.PlayView
	wake    chan struct{}
	replies chan Envelope
	done    chan struct{}
}

func newClient(s *Server, conn *websocket.Conn) *client {
	return &client{
		s:       s,
		conn:    conn,
		wake:    make(chan struct{}, 1),
		replies: make(chan Envelope, 16),
		done:    make(chan struct{}),
	}
}

func (c *client) run(reqCtx context.Context) {
	ctx, cancel := context.WithCancel(reqCtx)
	defer cancel()
	// commands that prefetch must outlive a dropped connection
	cmdCtx := context.WithoutCancel(reqCtx)

	subID := c.s.ui.Subscribe(c.pushState)
	defer c.s.ui.Unsubscribe(subID)
	c.pushState(c.s.ui.View())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writeLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		c.pingLoop(ctx)
	}()

	c.s.logger.Info("wsui_client_connected")
	err := c.readLoop(ctx, cmdCtx)
	close(c.done)
	cancel()
	wg.Wait()

	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
		_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
	} else {
		_ = c.conn.Close(websocket.StatusInternalError, "read failed")
	}
	c.s.logger.Info("wsui_client_disconnected", zap.Error(err))
}

func (c *client) readLoop(ctx, cmdCtx context.Context) error {
	for {
		var cmd Command
		if err := wsjson.Read(ctx, c.conn, &cmd); err != nil {
			return err
		}
		c.dispatch(cmdCtx, cmd)
	}
}

func (c *client) dispatch(ctx context.Context, cmd Command) {
	switch cmd.Type {
	case CmdSelect:
		c.reply(c.s.ui.HandleSelection(cmd.ArtworkID))
	case CmdDismiss:
		c.reply(c.s.ui.DismissPopup())
	case CmdStart:
		go func() { c.reply(c.s.ui.Start(ctx)) }()
	case CmdRestart:
		go func() { c.reply(c.s.ui.SaveScoreAndRestart(ctx)) }()
	case CmdTab:
		go func() { c.reply(c.s.ui.SelectTab(ctx, quizdto.Tab(cmd.Tab))) }()
	case CmdHistory:
		c.sendHistory(ctx)
	case CmdDelete:
		if err := c.s.ui.DeleteHistory(ctx, cmd.Indices); err != nil {
			c.reply(err)
			return
		}
		c.sendHistory(ctx)
	default:
		c.reply(quizdto.DomainError{Code: quizdto.CodeBadRequest, Message: fmt.Sprintf("unknown command %q", cmd.Type)})
	}
}

func (c *client) sendHistory(ctx context.Context) {
	h, err := c.s.ui.History(ctx)
	if err != nil {
		c.reply(err)
		return
	}
	c.enqueue(Envelope{Type: MsgHistory, History: &h})
}

// reply reports a command error to the client; nil needs no reply since the
// state push carries the outcome.
func (c *client) reply(err error) {
	if err == nil {
		return
	}
	var de quizdto.DomainError
	if !errors.As(err, &de) {
		de = quizdto.DomainError{Code: quizdto.CodeInternal, Message: err.Error()}
	}
	c.enqueue(Envelope{Type: MsgError, Error: &de})
}

func (c *client) enqueue(env Envelope) {
	select {
	case c.replies <- env:
	case <-c.done:
	default:
		c.s.logger.Warn("wsui_reply_dropped", zap.String("type", env.Type))
	}
}

func (c *client) pushState(v quizdto.PlayView) {
	c.mu.Lock()
	if c.pending == nil || v.Version >= c.pending.Version {
		c.pending = &v
	}
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *client) takeState() *quizdto.PlayView {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.pending
	c.pending = nil
	return v
}

func (c *client) writeLoop(ctx context.Context) {
	for {
		var env Envelope
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
			v := c.takeState()
			if v == nil {
				continue
			}
			env = Envelope{Type: MsgState, View: v}
		case env = <-c.replies:
		}
		wctx, cancel := context.WithTimeout(ctx, c.s.writeTimeout)
		err := wsjson.Write(wctx, c.conn, env)
		cancel()
		if err != nil {
			c.s.logger.Debug("wsui_write_failed", zap.String("type", env.Type), zap.Error(err))
			return
		}
	}
}

func (c *client) pingLoop(ctx context.Context) {
	if c.s.pingInterval <= 0 {
		return
	}
	t := time.NewTicker(c.s.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := c.conn.Ping(pctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				_ = c.conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}
