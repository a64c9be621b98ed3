package authapi

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrConfig is returned for invalid handler configuration.
var ErrConfig = errors.New("invalid auth api config")

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// LoginIPMax failed logins per client IP within LoginIPWindow block further attempts.
	LoginIPMax    int
	LoginIPWindow time.Duration

	// Progressive lockout per email, counted over LockoutLookback.
	LockoutLookback        time.Duration
	LockoutShortThreshold  int
	LockoutShortDuration   time.Duration
	LockoutLongThreshold   int
	LockoutLongDuration    time.Duration
	LockoutSevereThreshold int
	LockoutSevereDuration  time.Duration

	// AccountPageURL receives the browser after the Google callback.
	AccountPageURL string
}

// DefaultConfig returns safe defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:           1 << 20, // 1 MiB
		LoginIPMax:             20,
		LoginIPWindow:          5 * time.Minute,
		LockoutLookback:        24 * time.Hour,
		LockoutShortThreshold:  5,
		LockoutShortDuration:   5 * time.Minute,
		LockoutLongThreshold:   10,
		LockoutLongDuration:    30 * time.Minute,
		LockoutSevereThreshold: 20,
		LockoutSevereDuration:  2 * time.Hour,
		AccountPageURL:         "https://a1dos-creations.com/account/account",
	}
}

func (c Config) Check() error {
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: max body bytes must be > 0", ErrConfig)
	}
	if c.LoginIPMax > 0 && c.LoginIPWindow <= 0 {
		return fmt.Errorf("%w: login ip window must be > 0", ErrConfig)
	}
	if c.LockoutLookback < 0 {
		return fmt.Errorf("%w: lockout lookback must be >= 0", ErrConfig)
	}
	u, err := url.Parse(c.AccountPageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: account page url must be absolute", ErrConfig)
	}
	return nil
}

func (c Config) lockoutTiers() []lockoutTier {
	return []lockoutTier{
		{Threshold: c.LockoutSevereThreshold, Duration: c.LockoutSevereDuration},
		{Threshold: c.LockoutLongThreshold, Duration: c.LockoutLongDuration},
		{Threshold: c.LockoutShortThreshold, Duration: c.LockoutShortDuration},
	}
}
