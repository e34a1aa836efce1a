package redis

import (
	"fmt"

	"github.com/mcoot/tablesync/internal/model"
)

// Key prefix for all client data
const keyPrefix = "tsync"

// profileKey returns the Redis key for a Profile
func profileKey(username model.Username) string {
	return fmt.Sprintf("%s:profile:%s", keyPrefix, username)
}

// lastProfileKey holds the username of the most recently saved profile
func lastProfileKey() string {
	return fmt.Sprintf("%s:profile_last", keyPrefix)
}

// chatKey returns the Redis key for a room's chat LIST
func chatKey(room model.RoomID) string {
	return fmt.Sprintf("%s:chat:%s", keyPrefix, room)
}

// roomListKey returns the Redis key for the cached room directory
func roomListKey() string {
	return fmt.Sprintf("%s:rooms", keyPrefix)
}
