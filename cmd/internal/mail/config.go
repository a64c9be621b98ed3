package mail

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrConfig is returned for invalid mail configuration.
var ErrConfig = errors.New("invalid mail config")

// Config configures the SMTP sender.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	// ImplicitTLS dials TLS directly (port 465). Otherwise STARTTLS is required.
	ImplicitTLS bool
	Timeout     time.Duration
}

// DefaultConfig returns submission-port defaults.
func DefaultConfig() Config {
	return Config{
		Port:    587,
		From:    "admin@a1dos-creations.com",
		Timeout: 10 * time.Second,
	}
}

// Enabled reports whether an SMTP host is configured.
func (c Config) Enabled() bool { return strings.TrimSpace(c.Host) != "" }

func (c Config) Check() error {
	if !c.Enabled() {
		return nil
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrConfig, c.Port)
	}
	if strings.TrimSpace(c.From) == "" {
		return fmt.Errorf("%w: from address required", ErrConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be > 0", ErrConfig)
	}
	return nil
}
