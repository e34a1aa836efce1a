package request

import "github.com/mcoot/tablesync/internal/model"

// CreateRoomRequest is the request body for creating a room
type CreateRoomRequest struct {
	Name       string       `json:"name"`
	EntryFee   model.Amount `json:"entry_fee"`
	MaxPlayers int          `json:"max_players,omitempty"`
	IsPrivate  bool         `json:"is_private,omitempty"`
	Password   string       `json:"password,omitempty"`
}

// JoinRoomRequest is the optional body for joining a room
type JoinRoomRequest struct {
	Password string `json:"password,omitempty"`
}

// QuickMatchRequest is the request body for quick match
type QuickMatchRequest struct {
	Amount model.Amount `json:"amount"`
}

// PointRequest names a board point for click and move
type PointRequest struct {
	Point *model.Point `json:"point"`
}

// TextRequest carries chat, emoji and quick message text
type TextRequest struct {
	Text string `json:"text"`
}

// RaiseRequest is the request body for a table raise
type RaiseRequest struct {
	Amount model.Amount `json:"amount"`
}
