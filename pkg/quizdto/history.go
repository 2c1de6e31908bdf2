package quizdto

import "time"

// HistoryEntry is one row of the history screen. Index is the row position
// used by delete requests.
type HistoryEntry struct {
	Index    int       `json:"index"`
	ID       string    `json:"id"`
	Date     time.Time `json:"date"`
	Score    int       `json:"score"`
	MaxScore int       `json:"maxScore"`
	Good     bool      `json:"good"`
}

type HistoryView struct {
	Entries []HistoryEntry `json:"entries"`
	Empty   string         `json:"empty,omitempty"`
}
