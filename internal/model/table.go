package model

// TableState is the server's view of a betting table
type TableState struct {
	RoomID          RoomID   `json:"roomId"`
	CurrentTurn     Username `json:"currentTurnUsername"`
	CurrentBet      Amount   `json:"currentBet"`
	CanCall         bool     `json:"canCall"`
	CanShowdownCall bool     `json:"canShowdownCall"`
	CallAmount      Amount   `json:"callAmount"`
	MinRaise        Amount   `json:"minRaise"`
	MaxRaise        Amount   `json:"maxRaise"`
	EntryFee        Amount   `json:"entryFee"`
	Pot             Amount   `json:"pot"`
}
