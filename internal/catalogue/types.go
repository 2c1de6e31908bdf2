package catalogue

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

// DefaultBaseURL is the public collection API root.
const DefaultBaseURL = "https://collectionapi.metmuseum.org/public/collection/v1"

var (
	ErrNetwork  = errors.New("catalogue network error")
	ErrDecode   = errors.New("catalogue decode error")
	ErrNotFound = errors.New("catalogue object not found")
)

// Query holds the recognised search filters.
type Query struct {
	IsHighlight bool
	HasImages   bool
	HasArtist   bool
	Q           string
}

// PaintingQuery is the fixed query used to seed a game.
func PaintingQuery() Query {
	return Query{IsHighlight: true, HasImages: true, HasArtist: true, Q: "painting"}
}

// Encode renders the query string in the catalogue's documented order.
// url.Values is not used because it sorts keys.
func (q Query) Encode() string {
	parts := make([]string, 0, 4)
	if q.IsHighlight {
		parts = append(parts, "isHighlight=true")
	}
	if q.HasImages {
		parts = append(parts, "hasImages=true")
	}
	if q.HasArtist {
		parts = append(parts, "hasArtist=true")
	}
	parts = append(parts, "q="+escapeTerm(q.Q))
	return strings.Join(parts, "&")
}

func escapeTerm(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "*"
	}
	return url.QueryEscape(s)
}

// searchResponse keeps objectIDs raw so an absent key can be told apart from null.
type searchResponse struct {
	Total     int             `json:"total"`
	ObjectIDs json.RawMessage `json:"objectIDs"`
}
