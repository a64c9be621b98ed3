package live

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfig is returned for invalid gateway configuration.
var ErrConfig = errors.New("invalid live config")

const (
	// maxFrameBytes bounds a single inbound frame.
	maxFrameBytes = 8 << 10

	defaultSendQueue  = 8
	defaultRateEvents = 20
	defaultRateWindow = 10 * time.Second

	maxPingFailures = 3
	closeGrace      = time.Second
)

// Config holds gateway settings.
type Config struct {
	// OriginRequired rejects upgrades without an Origin header.
	OriginRequired bool
	// AllowedOrigins lists accepted origins ("*" allows any). When empty, only
	// same-host origins are accepted.
	AllowedOrigins []string
	// InsecureSkipVerify disables origin checks entirely. Development only.
	InsecureSkipVerify bool

	// RegisterTimeout bounds the wait for the first message.
	RegisterTimeout time.Duration
	WriteTimeout    time.Duration

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	// RateEvents inbound messages are allowed per RateWindow.
	RateEvents int
	RateWindow time.Duration

	SendQueue int
}

// DefaultConfig returns the gateway defaults.
func DefaultConfig() Config {
	return Config{
		RegisterTimeout:   10 * time.Second,
		WriteTimeout:      5 * time.Second,
		HeartbeatInterval: 25 * time.Second,
		HeartbeatTimeout:  5 * time.Second,
		RateEvents:        defaultRateEvents,
		RateWindow:        defaultRateWindow,
		SendQueue:         defaultSendQueue,
	}
}

// Check validates the configuration.
func (c Config) Check() error {
	if c.RegisterTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrConfig)
	}
	if c.HeartbeatInterval <= 0 || c.HeartbeatTimeout <= 0 {
		return fmt.Errorf("%w: heartbeat must be positive", ErrConfig)
	}
	if c.HeartbeatTimeout >= c.HeartbeatInterval {
		return fmt.Errorf("%w: heartbeat timeout must be shorter than interval", ErrConfig)
	}
	if c.RateEvents <= 0 || c.RateWindow <= 0 {
		return fmt.Errorf("%w: rate limit must be positive", ErrConfig)
	}
	if c.SendQueue <= 0 {
		return fmt.Errorf("%w: send queue must be positive", ErrConfig)
	}
	return nil
}
