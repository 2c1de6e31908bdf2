package validator

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Terapyy18/ArtGuessr/internal/domain"
)

// Prober reports whether an image URL is reachable.
type Prober interface {
	Reachable(ctx context.Context, rawURL string) bool
}

// Validator decides whether an artwork can be played. It holds no state
// beyond its prober.
type Validator struct {
	prober Prober
	logger *zap.Logger
}

func New(prober Prober, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{prober: prober, logger: logger}
}

// Playable checks the text fields first so the network probe only runs for
// otherwise complete artworks.
func (v *Validator) Playable(ctx context.Context, a *domain.Artwork) bool {
	if a == nil {
		return false
	}
	if reason := missingField(a); reason != "" {
		v.logger.Debug("artwork_rejected", zap.Int64("id", int64(a.ID)), zap.String("reason", reason))
		return false
	}
	if !validImageURL(a.ImageURL) {
		v.logger.Debug("artwork_rejected", zap.Int64("id", int64(a.ID)), zap.String("reason", "image_url"))
		return false
	}
	if v.prober == nil || !v.prober.Reachable(ctx, a.ImageURL) {
		v.logger.Debug("artwork_rejected", zap.Int64("id", int64(a.ID)), zap.String("reason", "image_unreachable"))
		return false
	}
	return true
}

func missingField(a *domain.Artwork) string {
	switch {
	case strings.TrimSpace(a.Title) == "":
		return "title"
	case strings.TrimSpace(a.Artist) == "":
		return "artist"
	case a.Year == 0:
		return "year"
	default:
		return ""
	}
}

func validImageURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
