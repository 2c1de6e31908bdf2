package catalogue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Terapyy18/ArtGuessr/internal/domain"
)

// Client talks to the read-only museum catalogue. It knows nothing about the game.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	logger  *zap.Logger
	limiter *rate.Limiter

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

// WithRetry sets how many attempts the search call makes on 5xx or transport errors.
// Lookups are never retried: a failed candidate is simply dropped.
func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithRateLimit caps outgoing requests at rps per second, retries included.
// A non-positive rps removes the cap.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		logger:         zap.NewNop(),
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchIDs returns the object ids matching q, in server order.
func (c *Client) SearchIDs(ctx context.Context, q Query) ([]domain.ArtworkID, error) {
	var resp searchResponse
	status, err := c.get(ctx, "/search?"+q.Encode(), &resp, true)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: search status=%d", ErrNetwork, status)
	}
	raw := bytes.TrimSpace(resp.ObjectIDs)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: objectIDs missing", ErrDecode)
	}
	if bytes.Equal(raw, []byte("null")) {
		return []domain.ArtworkID{}, nil
	}
	var ids []domain.ArtworkID
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("%w: objectIDs: %v", ErrDecode, err)
	}
	c.logger.Debug("catalogue_search", zap.Int("total", resp.Total), zap.Int("ids", len(ids)))
	return ids, nil
}

// LookupByID fetches one object. Missing fields decode to their zero values;
// playability is decided by the validator, not here.
func (c *Client) LookupByID(ctx context.Context, id domain.ArtworkID) (*domain.Artwork, error) {
	var a domain.Artwork
	status, err := c.get(ctx, "/objects/"+id.String(), &a, false)
	if err != nil {
		return nil, err
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("%w: id=%d status=%d", ErrNotFound, id, status)
	}
	if a.ID == 0 {
		a.ID = id
	}
	return &a, nil
}

// get performs a GET and decodes a 2xx body into out. It returns the final status;
// non-2xx statuses are not errors here so callers can classify them.
func (c *Client) get(ctx context.Context, path string, out any, retry bool) (int, error) {
	url := c.baseURL + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(url)
	req.Header.Set("Accept", "application/json")

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrNetwork, err)
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return 0, fmt.Errorf("%w: rate limit: %v", ErrNetwork, err)
			}
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			if attempt >= attempts {
				return 0, fmt.Errorf("%w: %v", ErrNetwork, err)
			}
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return 0, fmt.Errorf("%w: %v", ErrNetwork, err)
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			if attempt < attempts && shouldRetryStatus(status) {
				c.logger.Debug("catalogue_retry", zap.String("path", path), zap.Int("status", status), zap.Int("attempt", attempt))
				if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr == nil {
					continue
				}
			}
			return status, nil
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return status, fmt.Errorf("%w: %v", ErrDecode, err)
			}
		}
		return status, nil
	}
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
