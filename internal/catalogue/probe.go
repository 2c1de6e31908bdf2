package catalogue

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// DefaultProbeTimeout bounds a single image reachability check.
const DefaultProbeTimeout = 3 * time.Second

// ImageProber checks that an image URL answers a HEAD request with 200.
type ImageProber struct {
	http    *fasthttp.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewImageProber(timeout time.Duration, logger *zap.Logger) *ImageProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageProber{
		http:    &fasthttp.Client{ReadTimeout: timeout, WriteTimeout: timeout, MaxConnsPerHost: 64},
		timeout: timeout,
		logger:  logger,
	}
}

// Reachable never returns an error: timeouts, transport failures and
// non-200 statuses all count as unreachable.
func (p *ImageProber) Reachable(ctx context.Context, rawURL string) bool {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodHead)
	req.SetRequestURI(rawURL)
	resp.SkipBody = true

	deadline := time.Now().Add(p.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := p.http.DoDeadline(req, resp, deadline); err != nil {
		p.logger.Debug("image_probe_failed", zap.String("url", rawURL), zap.Error(err))
		return false
	}
	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		p.logger.Debug("image_probe_status", zap.String("url", rawURL), zap.Int("status", status))
		return false
	}
	return true
}
