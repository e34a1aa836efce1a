package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/tablesync/internal/model"
)

// Claim keys the server may use for the username and display name.
// ASP.NET Core issues the long schema URIs.
var (
	usernameKeys = []string{
		"username",
		"unique_name",
		"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name",
		"sub",
	}
	nameKeys = []string{
		"fullName",
		"name",
		"given_name",
	}
)

// ErrMalformedToken is returned for tokens that are not JWTs
var ErrMalformedToken = errors.New("session token is not a valid JWT")

// Claims is what the client reads from its session token. The signature
// is not verified: the hub verifies it, the client only uses these
// values as hints.
type Claims struct {
	Username    model.Username
	DisplayName model.DisplayName
	ExpiresAt   time.Time
}

// Expired reports whether the token has expired at now. Tokens without
// an expiry never expire.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ParseClaims reads claims from token without verifying it
func ParseClaims(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	var c Claims
	c.Username = model.Username(firstString(mc, usernameKeys))
	c.DisplayName = model.DisplayName(firstString(mc, nameKeys))
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

func firstString(mc jwt.MapClaims, keys []string) string {
	for _, k := range keys {
		if v, ok := mc[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
