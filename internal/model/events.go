package model

// EventName identifies a server-pushed hub event
type EventName string

const (
	// Identity events
	EventUserData       EventName = "UserData"
	EventBalanceUpdated EventName = "BalanceUpdated"

	// Directory events
	EventRoomCreated           EventName = "RoomCreated"
	EventBackgammonRoomCreated EventName = "BackgammonRoomCreated"
	EventRoomDeleted           EventName = "RoomDeleted"

	// Room events
	EventJoinedRoom   EventName = "JoinedRoom"
	EventJoinError    EventName = "JoinError"
	EventPlayerJoined EventName = "PlayerJoined"
	EventOpponentInfo EventName = "OpponentInfo"
	EventPlayerLeft   EventName = "PlayerLeft"

	// Game events
	EventGameStarting EventName = "GameStarting"
	EventGameStarted  EventName = "GameStarted"
	EventTurnChanged  EventName = "TurnChanged"
	EventDiceRolled   EventName = "DiceRolled"
	EventPieceMoved   EventName = "PieceMoved"
	EventGameEnded    EventName = "GameEnded"
	EventError        EventName = "Error"

	// Betting table events
	EventTableStateUpdated EventName = "TableStateUpdated"

	// Social events
	EventChatMessage  EventName = "ChatMessage"
	EventQuickEmoji   EventName = "QuickEmoji"
	EventQuickMessage EventName = "QuickMessage"
)

// AllEvents lists every event the hub is known to push
var AllEvents = []EventName{
	EventUserData, EventBalanceUpdated,
	EventRoomCreated, EventBackgammonRoomCreated, EventRoomDeleted,
	EventJoinedRoom, EventJoinError, EventPlayerJoined, EventOpponentInfo, EventPlayerLeft,
	EventGameStarting, EventGameStarted, EventTurnChanged, EventDiceRolled, EventPieceMoved, EventGameEnded, EventError,
	EventTableStateUpdated,
	EventChatMessage, EventQuickEmoji, EventQuickMessage,
}

// Method names a server-side hub method
type Method string

const (
	MethodGetAvailableRooms Method = "GetAvailableRooms"
	MethodCreateRoom        Method = "CreateRoom"
	MethodQuickMatch        Method = "QuickMatch"
	MethodJoinRoom          Method = "JoinRoom"
	MethodLeaveRoom         Method = "LeaveRoom"
	MethodGetGameState      Method = "GetGameState"
	MethodRollDice          Method = "RollDice"
	MethodMovePiece         Method = "MovePiece"
	MethodEndTurn           Method = "EndTurn"
	MethodSendChatMessage   Method = "SendChatMessage"
	MethodSendQuickEmoji    Method = "SendQuickEmoji"
	MethodSendQuickMessage  Method = "SendQuickMessage"
	MethodFold              Method = "Fold"
	MethodCall              Method = "Call"
	MethodRaise             Method = "Raise"
	MethodAllIn             Method = "AllIn"
	MethodShowdownCall      Method = "ShowdownCall"
)

// UserDataPayload confirms the connection's identity
type UserDataPayload struct {
	Username Username    `json:"username"`
	FullName DisplayName `json:"fullName"`
	Balance  Amount      `json:"balance"`
}

// BalanceUpdatedPayload carries a new wallet balance
type BalanceUpdatedPayload struct {
	Balance Amount `json:"balance"`
}

// JoinedRoomPayload confirms a room join and assigns a seat
type JoinedRoomPayload struct {
	RoomID             RoomID `json:"roomId"`
	Color              Color  `json:"color"`
	BetAmount          Amount `json:"betAmount"`
	WaitingForOpponent bool   `json:"waitingForOpponent"`
}

// GameStartingPayload announces the opening roll
type GameStartingPayload struct {
	Player1 OpeningRoll `json:"player1"`
	Player2 OpeningRoll `json:"player2"`
	Starter DisplayName `json:"starter"`
}

// GameStartedPayload carries the initial board
type GameStartedPayload struct {
	Board         Board    `json:"board"`
	IsMyTurn      bool     `json:"isMyTurn"`
	CurrentPlayer Username `json:"currentPlayer,omitempty"`
	Message       string   `json:"message,omitempty"`
}

// TurnChangedPayload names the new turn owner
type TurnChangedPayload struct {
	CurrentPlayer Username `json:"currentPlayer"`
}

// DiceRolledPayload carries the result of a roll
type DiceRolledPayload struct {
	Dice   Dice     `json:"dice"`
	Player Username `json:"player,omitempty"`
}

// PieceMovedPayload carries the board after a move
type PieceMovedPayload struct {
	Board     Board `json:"board"`
	FromPoint Point `json:"fromPoint"`
	ToPoint   Point `json:"toPoint"`
}

// GameEndedPayload announces the end of a game
type GameEndedPayload struct {
	Message string   `json:"message"`
	Winner  Username `json:"winner,omitempty"`
}

// GameSnapshotPayload is the reply to GetGameState
type GameSnapshotPayload struct {
	RoomID        RoomID   `json:"roomId"`
	Board         Board    `json:"board"`
	CurrentPlayer Username `json:"currentPlayer"`
	Dice          Dice     `json:"dice,omitempty"`
	DiceRolled    bool     `json:"diceRolled"`
	Started       bool     `json:"started"`
	Ended         bool     `json:"ended"`
}

// ChatMessagePayload is a chat line from the server
type ChatMessagePayload struct {
	Sender   string `json:"sender"`
	Message  string `json:"message"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// QuickEmojiPayload is an emoji reaction
type QuickEmojiPayload struct {
	Sender string `json:"sender"`
	Emoji  string `json:"emoji"`
}

// QuickMessagePayload is a canned message
type QuickMessagePayload struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}
