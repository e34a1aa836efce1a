package storage

import (
	"context"

	"github.com/mcoot/tablesync/internal/model"
)

// Storage defines the interface for client-side persistence
type Storage interface {
	// Profile operations
	SaveProfile(ctx context.Context, profile *model.Profile) error
	GetProfile(ctx context.Context, username model.Username) (*model.Profile, error)
	GetLastProfile(ctx context.Context) (*model.Profile, error)
	DeleteProfile(ctx context.Context, username model.Username) error

	// Chat operations
	AppendChatMessage(ctx context.Context, room model.RoomID, msg model.ChatMessage) error
	GetChatHistory(ctx context.Context, room model.RoomID, limit int) ([]model.ChatMessage, error)
	DeleteChatHistory(ctx context.Context, room model.RoomID) error

	// Room directory cache
	SaveRoomList(ctx context.Context, rooms []model.RoomSummary) error
	GetRoomList(ctx context.Context) ([]model.RoomSummary, error)
}
