// Package identity holds the client identity material presented during
// the authentication handshake.
package identity

import "github.com/google/uuid"

// Identity is the fixed client metadata sent with every auth response.
// BrowserID is generated once per process and survives reconnects.
type Identity struct {
	BrowserID string // random instance id, stable for the process lifetime
	UserID    string // owning user, from configuration
	UserAgent string // browser-identifying user agent
	Version   string // protocol version reported to the server
}

// New creates an Identity with a fresh random instance id.
func New(userID, userAgent, version string) *Identity {
	return &Identity{
		BrowserID: uuid.NewString(),
		UserID:    userID,
		UserAgent: userAgent,
		Version:   version,
	}
}
