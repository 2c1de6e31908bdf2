package domain

import (
	"strconv"
	"time"
)

// ArtworkID is the catalogue's object identifier.
type ArtworkID int64

func (id ArtworkID) String() string { return strconv.FormatInt(int64(id), 10) }

// Artwork is the subset of a catalogue object the quiz needs.
// The JSON tags follow the catalogue's lookup payload so the same codec
// decodes API responses and re-encodes cached values.
type Artwork struct {
	ID       ArtworkID `json:"objectID"`
	ImageURL string    `json:"primaryImageSmall"`
	Title    string    `json:"title"`
	Artist   string    `json:"artistDisplayName"`
	Year     int       `json:"objectBeginDate"`
}

// Field identifies one of the three guessed attributes.
type Field string

const (
	FieldArtist Field = "artist"
	FieldTitle  Field = "title"
	FieldYear   Field = "year"
)

// Label returns the textual value of f, as shown on an answer button.
func (a Artwork) Label(f Field) string {
	switch f {
	case FieldArtist:
		return a.Artist
	case FieldTitle:
		return a.Title
	case FieldYear:
		return strconv.Itoa(a.Year)
	default:
		return ""
	}
}

// ScoreRecord is one completed game in the history log.
type ScoreRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Score     int       `json:"score"`
	MaxScore  int       `json:"max_score"`
	Date      time.Time `json:"date"`
}

// Good reports whether the record reached at least half the maximum score.
func (r ScoreRecord) Good() bool { return r.MaxScore > 0 && r.Score >= r.MaxScore/2 }
