package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/tablesync/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeRoomNotFound       = "ROOM_NOT_FOUND"
	CodeNotInRoom          = "NOT_IN_ROOM"
	CodeAlreadyInRoom      = "ALREADY_IN_ROOM"
	CodeNotYourTurn        = "NOT_YOUR_TURN"
	CodeAlreadyRolled      = "ALREADY_ROLLED"
	CodeActionPending      = "ACTION_PENDING"
	CodeRollFirst          = "ROLL_FIRST"
	CodeInvalidMove        = "INVALID_MOVE"
	CodeInsufficientFunds  = "INSUFFICIENT_BALANCE"
	CodeRateLimited        = "RATE_LIMITED"
	CodePreconditionFailed = "PRECONDITION_FAILED"
	CodeServerRejected     = "SERVER_REJECTED"
	CodeConnection         = "CONNECTION_UNAVAILABLE"
	CodeSessionEnded       = "SESSION_ENDED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// StatusOf returns the HTTP status err maps to
func StatusOf(err error) int {
	return toHTTPError(err).status
}

// preconditionCodes refines the generic precondition code
var preconditionCodes = []struct {
	err  error
	code string
}{
	{model.ErrNotInRoom, CodeNotInRoom},
	{model.ErrAlreadyInRoom, CodeAlreadyInRoom},
	{model.ErrNotYourTurn, CodeNotYourTurn},
	{model.ErrAlreadyRolled, CodeAlreadyRolled},
	{model.ErrActionPending, CodeActionPending},
	{model.ErrRollFirst, CodeRollFirst},
	{model.ErrNotYourPiece, CodeInvalidMove},
	{model.ErrReserveNotEmpty, CodeInvalidMove},
	{model.ErrReserveEmpty, CodeInvalidMove},
	{model.ErrNoSelection, CodeInvalidMove},
	{model.ErrInvalidPoint, CodeInvalidMove},
	{model.ErrInsufficientBalance, CodeInsufficientFunds},
	{model.ErrRateLimited, CodeRateLimited},
	{model.ErrSessionEnded, CodeSessionEnded},
}

// toHTTPError converts an error to an httpError. Categorized client
// errors map by kind: precondition 409, server rejection 422,
// connection 503 and fatal 500.
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	kind, ok := model.KindOf(err)
	if !ok {
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}

	msg := model.UserMessage(err)
	switch kind {
	case model.KindPrecondition:
		code := CodePreconditionFailed
		for _, pc := range preconditionCodes {
			if errors.Is(err, pc.err) {
				code = pc.code
				break
			}
		}
		return &httpError{http.StatusConflict, APIError{code, msg}}
	case model.KindServerRejection:
		return &httpError{http.StatusUnprocessableEntity, APIError{CodeServerRejected, msg}}
	case model.KindConnection:
		return &httpError{http.StatusServiceUnavailable, APIError{CodeConnection, msg}}
	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, msg}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewRoomNotFoundError reports a room missing from the directory
func NewRoomNotFoundError() error {
	return &httpError{http.StatusNotFound, APIError{CodeRoomNotFound, "Room not found"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
