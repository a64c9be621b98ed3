package google

import (
	"errors"
	"strings"
)

// ErrNotConfigured is returned when Google credentials are absent.
var ErrNotConfigured = errors.New("google integration not configured")

// Default scopes: sign-in identity, read-only classroom courses, calendar.
var DefaultScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/classroom.courses.readonly",
	"https://www.googleapis.com/auth/calendar",
}

// Config holds OAuth client credentials and calendar settings.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// AuthURL and TokenURL override Google's endpoints (tests).
	AuthURL  string
	TokenURL string
	// CalendarEndpoint overrides the Calendar API base path (tests).
	CalendarEndpoint string

	// CalendarName is the summary of the calendar tasks are synced into.
	CalendarName string
	// TimeZone is used for new calendars and task events.
	TimeZone string
}

// DefaultConfig returns the calendar defaults. Credentials have no default.
func DefaultConfig() Config {
	return Config{
		Scopes:       append([]string(nil), DefaultScopes...),
		CalendarName: "🔄️ STL Synced Tasks",
		TimeZone:     "America/Los_Angeles",
	}
}

// Enabled reports whether OAuth credentials are configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != "" && strings.TrimSpace(c.RedirectURL) != ""
}
