package session

import (
	"context"
	"time"
)

// UnknownLocation is recorded when the network origin cannot be resolved.
const UnknownLocation = "Unknown Location"

// Device describes where a login came from.
type Device struct {
	// Info is the client's device descriptor (User-Agent).
	Info string
	// IP is the network origin as seen by the server.
	IP string
	// Location is a coarse, human-readable location for IP.
	Location string
}

// Record mirrors a user_sessions row.
type Record struct {
	ID           string
	UserID       string
	TokenHash    string
	DeviceInfo   string
	IPAddress    string
	Location     string
	LoginTime    time.Time
	LastActivity time.Time
}

// Store abstracts persistence for session rows.
type Store interface {
	// Create inserts one row per successful login.
	Create(ctx context.Context, now time.Time, userID, tokenHash string, dev Device) (sessionID string, err error)

	// ListLatestPerDevice returns the newest row for each distinct (device_info, location)
	// of userID, newest first. Older rows stay in the table.
	ListLatestPerDevice(ctx context.Context, userID string) ([]Record, error)

	// DeleteForUser deletes the row matching (sessionID, userID) and returns its token hash.
	// It returns ErrSessionNotFound when no row matches.
	DeleteForUser(ctx context.Context, sessionID, userID string) (tokenHash string, err error)

	// TouchByTokenHash sets last_activity on the row holding tokenHash and returns it.
	// It returns ErrSessionNotFound when no row matches.
	TouchByTokenHash(ctx context.Context, now time.Time, tokenHash string) (Record, error)
}
