package wsui

import "github.com/Terapyy18/ArtGuessr/pkg/quizdto"

// Client to server command types.
const (
	CmdStart   = "start"
	CmdSelect  = "select"
	CmdDismiss = "dismiss"
	CmdRestart = "restart"
	CmdTab     = "tab"
	CmdHistory = "history"
	CmdDelete  = "delete"
)

// Server to client envelope types.
const (
	MsgState   = "state"
	MsgHistory = "history"
	MsgError   = "error"
)

type Command struct {
	Type      string `json:"type"`
	ArtworkID int64  `json:"artworkId,omitempty"`
	Indices   []int  `json:"indices,omitempty"`
	Tab       string `json:"tab,omitempty"`
}

type Envelope struct {
	Type    string               `json:"type"`
	View    *quizdto.PlayView    `json:"view,omitempty"`
	History *quizdto.HistoryView `json:"history,omitempty"`
	Error   *quizdto.DomainError `json:"error,omitempty"`
}
