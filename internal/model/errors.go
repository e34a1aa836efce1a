package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Connection errors
	ErrNotConnected      = errors.New("not connected to the game server")
	ErrReconnecting      = errors.New("connection lost, reconnecting - try again in a moment")
	ErrConnectionLost    = errors.New("connection lost")
	ErrSessionClosed     = errors.New("session closed")
	ErrHandshakeRejected = errors.New("server rejected the connection")
	ErrNoToken           = errors.New("no session token, please log in")
	ErrTokenExpired      = errors.New("session token has expired, please log in again")

	// Identity errors
	ErrIdentityUnconfirmed = errors.New("player identity not confirmed yet")

	// Turn errors
	ErrNotYourTurn        = errors.New("it is not your turn")
	ErrAlreadyRolled      = errors.New("dice already rolled this turn")
	ErrActionPending      = errors.New("an action is already in progress")
	ErrRollFirst          = errors.New("roll the dice first")
	ErrReserveNotEmpty    = errors.New("move your pieces from the bar first")
	ErrReserveEmpty       = errors.New("you have no pieces on the bar")
	ErrNotYourPiece       = errors.New("that point has none of your pieces")
	ErrNoSelection        = errors.New("select a piece first")
	ErrInvalidPoint       = errors.New("invalid board point")
	ErrGameNotInProgress  = errors.New("game is not in progress")
	ErrSessionEnded       = errors.New("game session has ended")
	ErrActionNotAllowed   = errors.New("action not allowed right now")
	ErrUnexpectedEvent    = errors.New("event not valid in the current state")
	ErrInvalidRaiseAmount = errors.New("raise amount is out of range")

	// Lobby errors
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidRoomName     = errors.New("room name is required")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrNotInRoom           = errors.New("not in a room")
	ErrAlreadyInRoom       = errors.New("already in a room, leave it first")
	ErrRoomRequired        = errors.New("room id is required")
	ErrJoinRejected        = errors.New("could not join the room")

	// Feedback errors
	ErrEmptyMessage = errors.New("message is empty")
	ErrRateLimited  = errors.New("sending too fast, slow down")

	// Server errors
	ErrServerRejected = errors.New("server rejected the request")

	// Storage errors
	ErrProfileNotFound   = errors.New("profile not found")
	ErrRoomListNotCached = errors.New("room list not cached")
)

// ErrorKind categorizes errors by how the user should be told about them
type ErrorKind string

const (
	KindConnection      ErrorKind = "connection"
	KindPrecondition    ErrorKind = "precondition"
	KindServerRejection ErrorKind = "server_rejection"
	KindFatal           ErrorKind = "fatal"
)

// Error is a categorized error produced by a client operation
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown to the player
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Precondition wraps a locally detected precondition failure
func Precondition(op string, err error) error {
	return &Error{Kind: KindPrecondition, Op: op, Err: err}
}

// Connection wraps a transport failure
func Connection(op string, err error) error {
	return &Error{Kind: KindConnection, Op: op, Err: err}
}

// Rejection reports a server-side refusal with the server's message
func Rejection(op, message string) error {
	return &Error{Kind: KindServerRejection, Op: op, Message: message, Err: ErrServerRejected}
}

// Fatal wraps an error that ends the current session scope
func Fatal(op string, err error) error {
	return &Error{Kind: KindFatal, Op: op, Err: err}
}

// KindOf returns the category of err, if it has one
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err is categorized as kind
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// UserMessage returns a short, player-facing description of err
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.UserMessage()
	}
	return err.Error()
}
