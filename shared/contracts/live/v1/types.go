// Package v1 defines the live revocation channel contract.
//
// The protocol is deliberately small. After opening the socket the client sends
// RegisterMessage once; the server answers with an Event and may later push
// ActionLogout when the session behind the token is revoked.
package v1

import (
	"errors"
	"strings"
)

// Actions carried in Event.Action (server -> client).
const (
	// ActionRegistered acknowledges a registration.
	ActionRegistered = "registered"
	// ActionLogout tells the client its session was revoked.
	ActionLogout = "logout"
	// ActionError reports a rejected client message.
	ActionError = "error"
)

// MaxTokenBytes bounds the token accepted in RegisterMessage.
const MaxTokenBytes = 4096

// RegisterMessage binds the connection to a session token (client -> server).
type RegisterMessage struct {
	Token string `json:"token"`
}

// Validate checks the message shape only; token authenticity is the server's job.
func (m RegisterMessage) Validate() error {
	t := strings.TrimSpace(m.Token)
	if t == "" {
		return errors.New("missing token")
	}
	if len(t) > MaxTokenBytes {
		return errors.New("token too long")
	}
	return nil
}

// Event is a server push.
type Event struct {
	Action  string `json:"action"`
	Message string `json:"message,omitempty"`
}

// Logout returns the revocation event.
func Logout() Event { return Event{Action: ActionLogout} }
