package memory

import (
	"context"
	"sync"

	"github.com/mcoot/tablesync/internal/model"
	"github.com/mcoot/tablesync/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	profiles    map[model.Username]model.Profile
	lastProfile model.Username
	chat        map[model.RoomID][]model.ChatMessage
	rooms       []model.RoomSummary
	roomsCached bool
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		profiles: make(map[model.Username]model.Profile),
		chat:     make(map[model.RoomID][]model.ChatMessage),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Profile operations

func (s *Storage) SaveProfile(ctx context.Context, profile *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.Username] = *profile
	s.lastProfile = profile.Username
	return nil
}

func (s *Storage) GetProfile(ctx context.Context, username model.Username) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[username]
	if !ok {
		return nil, model.ErrProfileNotFound
	}
	return &profile, nil
}

func (s *Storage) GetLastProfile(ctx context.Context) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[s.lastProfile]
	if !ok {
		return nil, model.ErrProfileNotFound
	}
	return &profile, nil
}

func (s *Storage) DeleteProfile(ctx context.Context, username model.Username) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, username)
	if s.lastProfile == username {
		s.lastProfile = ""
	}
	return nil
}

// Chat operations

func (s *Storage) AppendChatMessage(ctx context.Context, room model.RoomID, msg model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat[room] = append(s.chat[room], msg)
	return nil
}

// GetChatHistory returns the newest limit messages in send order. A
// non-positive limit returns everything.
func (s *Storage) GetChatHistory(ctx context.Context, room model.RoomID, limit int) ([]model.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.chat[room]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	result := make([]model.ChatMessage, len(log))
	copy(result, log)
	return result, nil
}

func (s *Storage) DeleteChatHistory(ctx context.Context, room model.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chat, room)
	return nil
}

// Room directory cache

func (s *Storage) SaveRoomList(ctx context.Context, rooms []model.RoomSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = append([]model.RoomSummary(nil), rooms...)
	s.roomsCached = true
	return nil
}

func (s *Storage) GetRoomList(ctx context.Context) ([]model.RoomSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.roomsCached {
		return nil, model.ErrRoomListNotCached
	}
	return append([]model.RoomSummary{}, s.rooms...), nil
}
