// Package protocol defines the JSON frames exchanged with the game hub.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// FrameType identifies the kind of frame
type FrameType string

const (
	TypeInvocation FrameType = "invocation"
	TypeCompletion FrameType = "completion"
	TypeEvent      FrameType = "event"
	TypePing       FrameType = "ping"
	TypeClose      FrameType = "close"
)

var (
	ErrUnknownFrameType = errors.New("unknown frame type")
	ErrMissingID        = errors.New("frame is missing an id")
	ErrMissingTarget    = errors.New("frame is missing a target")
	ErrMissingArgument  = errors.New("missing argument")
)

// Frame is a single hub message
type Frame struct {
	Type      FrameType       `json:"type"`
	ID        string          `json:"id,omitempty"`
	Target    string          `json:"target,omitempty"`
	Arguments Arguments       `json:"arguments,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Arguments are the positional arguments of an invocation or event
type Arguments []json.RawMessage

// Decode unmarshals argument i into v
func (a Arguments) Decode(i int, v any) error {
	if i < 0 || i >= len(a) {
		return fmt.Errorf("%w: index %d of %d", ErrMissingArgument, i, len(a))
	}
	if err := json.Unmarshal(a[i], v); err != nil {
		return fmt.Errorf("failed to decode argument %d: %w", i, err)
	}
	return nil
}

// Len returns the number of arguments
func (a Arguments) Len() int {
	return len(a)
}

// NewArguments marshals each value into an argument
func NewArguments(values ...any) (Arguments, error) {
	args := make(Arguments, 0, len(values))
	for i, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal argument %d: %w", i, err)
		}
		args = append(args, data)
	}
	return args, nil
}

// NewInvocation builds an invocation frame with a fresh id
func NewInvocation(target string, values ...any) (Frame, error) {
	args, err := NewArguments(values...)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:      TypeInvocation,
		ID:        uuid.NewString(),
		Target:    target,
		Arguments: args,
	}, nil
}

// NewCompletion builds a completion frame. A non-empty errMsg marks a rejection.
func NewCompletion(id string, result any, errMsg string) (Frame, error) {
	f := Frame{Type: TypeCompletion, ID: id, Error: errMsg}
	if result != nil && errMsg == "" {
		data, err := json.Marshal(result)
		if err != nil {
			return Frame{}, fmt.Errorf("failed to marshal result: %w", err)
		}
		f.Result = data
	}
	return f, nil
}

// NewEvent builds a server event frame
func NewEvent(target string, values ...any) (Frame, error) {
	args, err := NewArguments(values...)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: TypeEvent, Target: target, Arguments: args}, nil
}

// Encode serializes a frame
func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// Decode parses and validates a frame
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("failed to parse frame: %w", err)
	}

	switch f.Type {
	case TypeInvocation:
		if f.ID == "" {
			return Frame{}, ErrMissingID
		}
		if f.Target == "" {
			return Frame{}, ErrMissingTarget
		}
	case TypeCompletion:
		if f.ID == "" {
			return Frame{}, ErrMissingID
		}
	case TypeEvent:
		if f.Target == "" {
			return Frame{}, ErrMissingTarget
		}
	case TypePing, TypeClose:
	default:
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownFrameType, f.Type)
	}
	return f, nil
}
