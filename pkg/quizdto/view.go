package quizdto

type Tab string

const (
	TabHome    Tab = "home"
	TabPlay    Tab = "play"
	TabHistory Tab = "history"
)

// OptionButton is one answer button; ArtworkID identifies it even when labels collide.
type OptionButton struct {
	ArtworkID int64  `json:"artworkId"`
	Label     string `json:"label"`
}

type ScoreLine struct {
	Field         string `json:"field"`
	FieldName     string `json:"fieldName"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	Correct       bool   `json:"correct"`
}

type Popup struct {
	Title  string      `json:"title"`
	Points int         `json:"points"`
	Lines  []ScoreLine `json:"lines"`
}

type PlayView struct {
	Version   uint64 `json:"version"`
	SessionID string `json:"sessionId,omitempty"`
	Tab       Tab    `json:"tab"`
	Phase     string `json:"phase"`
	Loading   bool   `json:"loading"`
	GameOver  bool   `json:"gameOver"`

	Round    int `json:"round"`
	Rounds   int `json:"rounds"`
	Score    int `json:"score"`
	MaxScore int `json:"maxScore"`

	Question       string         `json:"question,omitempty"`
	ImageURL       string         `json:"imageUrl,omitempty"`
	ImageAvailable bool           `json:"imageAvailable"`
	Options        []OptionButton `json:"options,omitempty"`
	Popup          *Popup         `json:"popup,omitempty"`
}
