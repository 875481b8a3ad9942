package model

import "time"

// AuthTokenTTL is the server-side lifetime of an issued token. The client
// never expires a token on a timer; expiry is discovered through a 401.
const AuthTokenTTL = 60 * time.Minute

// AuthToken is the bearer credential for segment and event-log calls.
// It is cached under a single slot regardless of device identity.
type AuthToken struct {
	Value   string    `json:"value"`
	SavedAt time.Time `json:"savedAt"`
}
