package model

// SessionState is the coarse lifecycle of a game session
type SessionState string

const (
	SessionJoining            SessionState = "joining"
	SessionWaitingForOpponent SessionState = "waiting_for_opponent"
	SessionInProgress         SessionState = "in_progress"
	SessionEnded              SessionState = "ended"
)

// TurnPhase is the sub-cycle within a turn
type TurnPhase string

const (
	TurnIdle       TurnPhase = "idle"
	ActionPending  TurnPhase = "action_pending"
	ActionResolved TurnPhase = "action_resolved"
	MovesAvailable TurnPhase = "moves_available"
	TurnEnding     TurnPhase = "turn_ending"
)

// Dice holds the values of a roll
type Dice []int

// Screen identifies the currently active navigation scope
type Screen string

const (
	ScreenNone  Screen = "none"
	ScreenLobby Screen = "lobby"
	ScreenGame  Screen = "game"
)

// Opponent describes the other player at the table
type Opponent struct {
	Name  DisplayName `json:"name"`
	Color Color       `json:"color"`
}

// OpeningRoll is one player's opening die
type OpeningRoll struct {
	Name DisplayName `json:"name"`
	Dice int         `json:"dice"`
}

// SessionSnapshot is a read-only copy of a game session's state
type SessionSnapshot struct {
	RoomID          RoomID       `json:"room_id"`
	State           SessionState `json:"state"`
	Phase           TurnPhase    `json:"phase"`
	Seat            Color        `json:"seat,omitempty"`
	BetAmount       Amount       `json:"bet_amount"`
	Opponent        *Opponent    `json:"opponent,omitempty"`
	Board           Board        `json:"board"`
	TurnOwner       Username     `json:"turn_owner,omitempty"`
	PendingRoll     Dice         `json:"pending_roll,omitempty"`
	TurnActionTaken bool         `json:"turn_action_taken"`
	Selection       *Point       `json:"selection,omitempty"`
	Message         string       `json:"message,omitempty"`
}
