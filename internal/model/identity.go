package model

import "time"

// Username is the server-issued connection identity. It is the only value
// turn ownership is ever compared against.
type Username string

// DisplayName is a human-readable name. It is never used for authorization.
type DisplayName string

// Amount is a currency amount as sent by the server
type Amount float64

// PlayerIdentity is the identity confirmed by the server's UserData event
type PlayerIdentity struct {
	Username    Username    `json:"username"`
	DisplayName DisplayName `json:"display_name"`
	Balance     Amount      `json:"balance"`
}

// IsTurnOwner reports whether owner names this identity
func (p PlayerIdentity) IsTurnOwner(owner Username) bool {
	return p.Username != "" && owner == p.Username
}

// Profile is a remembered login kept between runs
type Profile struct {
	Username    Username    `json:"username"`
	DisplayName DisplayName `json:"display_name"`
	Token       string      `json:"token"`
	Balance     Amount      `json:"balance"`
	SavedAt     time.Time   `json:"saved_at"`
}
