package model

// RoomID identifies a game room on the server
type RoomID string

// RoomSummary is one entry in the room directory
type RoomSummary struct {
	ID          RoomID      `json:"roomId"`
	Name        string      `json:"name,omitempty"`
	GameType    string      `json:"gameType,omitempty"`
	Host        DisplayName `json:"hostName,omitempty"`
	BetAmount   Amount      `json:"betAmount"`
	PlayerCount int         `json:"playerCount"`
	MaxPlayers  int         `json:"maxPlayers"`
	IsPrivate   bool        `json:"isPrivate,omitempty"`
}

// IsFull reports whether the room has no free seats
func (r RoomSummary) IsFull() bool {
	return r.MaxPlayers > 0 && r.PlayerCount >= r.MaxPlayers
}

// CreateRoomRequest holds the parameters for creating a room
type CreateRoomRequest struct {
	Name       string `json:"name"`
	EntryFee   Amount `json:"entryFee"`
	MaxPlayers int    `json:"maxPlayers"`
	IsPrivate  bool   `json:"isPrivate"`
	Password   string `json:"password,omitempty"`
}

// CreateRoomResult is the server's reply to CreateRoom
type CreateRoomResult struct {
	Success bool   `json:"success"`
	RoomID  RoomID `json:"roomId"`
	Message string `json:"message"`
}
