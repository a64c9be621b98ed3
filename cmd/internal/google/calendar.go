package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/identity"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// ErrNotLinked is returned when the user has no stored Google tokens.
var ErrNotLinked = errors.New("google account not linked")

// ErrCalendarNotFound is returned when the synced calendar does not exist.
var ErrCalendarNotFound = errors.New("synced calendar not found")

// TokenSaver persists refreshed Google tokens.
type TokenSaver interface {
	SaveGoogleLink(ctx context.Context, userID string, link identity.GoogleLink, now time.Time) error
}

// Task is a to-do item mirrored as a one-hour calendar event at its due time.
type Task struct {
	Title       string
	Description string
	Due         time.Time
}

// Calendar syncs tasks into the user's synced calendar.
type Calendar struct {
	oauth *OAuth
	cfg   Config
	saver TokenSaver
	log   *slog.Logger
}

// NewCalendar constructs a Calendar client.
func NewCalendar(o *OAuth, cfg Config, saver TokenSaver, log *slog.Logger) *Calendar {
	if log == nil {
		log = slog.Default()
	}
	if cfg.CalendarName == "" {
		cfg.CalendarName = DefaultConfig().CalendarName
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = DefaultConfig().TimeZone
	}
	return &Calendar{oauth: o, cfg: cfg, saver: saver, log: log}
}

// savingSource writes a token back whenever the underlying source hands out a new one.
type savingSource struct {
	base   oauth2.TokenSource
	save   func(*oauth2.Token)
	mu     sync.Mutex
	latest string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	t, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	changed := t.AccessToken != s.latest
	s.latest = t.AccessToken
	s.mu.Unlock()
	if changed && s.save != nil {
		s.save(t)
	}
	return t, nil
}

func (c *Calendar) service(ctx context.Context, userID string, link identity.GoogleLink) (*calendar.Service, error) {
	if c == nil || c.oauth == nil {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(link.AccessToken) == "" {
		return nil, ErrNotLinked
	}

	seed := &oauth2.Token{AccessToken: link.AccessToken, RefreshToken: link.RefreshToken}
	if link.Expiry != nil {
		seed.Expiry = *link.Expiry
	}

	src := &savingSource{
		base:   oauth2.ReuseTokenSource(seed, c.oauth.tokenSource(ctx, seed)),
		latest: seed.AccessToken,
		save: func(t *oauth2.Token) {
			if c.saver == nil {
				return
			}
			exp := t.Expiry
			upd := identity.GoogleLink{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, Expiry: &exp}
			if err := c.saver.SaveGoogleLink(ctx, userID, upd, time.Now().UTC()); err != nil {
				c.log.Warn("google.token.persist.fail", "user_id", userID, "err", err)
			}
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, src))}
	if c.cfg.CalendarEndpoint != "" {
		opts = append(opts, option.WithEndpoint(c.cfg.CalendarEndpoint))
	}
	return calendar.NewService(ctx, opts...)
}

func (c *Calendar) findSynced(ctx context.Context, svc *calendar.Service) (string, error) {
	pageToken := ""
	for {
		call := svc.CalendarList.List().Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return "", fmt.Errorf("google: list calendars: %w", err)
		}
		for _, item := range list.Items {
			if item.Summary == c.cfg.CalendarName {
				return item.Id, nil
			}
		}
		if list.NextPageToken == "" {
			return "", ErrCalendarNotFound
		}
		pageToken = list.NextPageToken
	}
}

// EnsureSyncedCalendar returns the id of the synced calendar, creating it if absent.
func (c *Calendar) EnsureSyncedCalendar(ctx context.Context, userID string, link identity.GoogleLink) (string, error) {
	svc, err := c.service(ctx, userID, link)
	if err != nil {
		return "", err
	}
	return c.ensure(ctx, svc)
}

func (c *Calendar) ensure(ctx context.Context, svc *calendar.Service) (string, error) {
	id, err := c.findSynced(ctx, svc)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrCalendarNotFound) {
		return "", err
	}

	created, err := svc.Calendars.Insert(&calendar.Calendar{
		Summary:  c.cfg.CalendarName,
		TimeZone: c.cfg.TimeZone,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("google: create calendar: %w", err)
	}
	return created.Id, nil
}

// AddTaskEvent inserts a one-hour event for task into the synced calendar, creating
// the calendar if needed, and returns the event id.
func (c *Calendar) AddTaskEvent(ctx context.Context, userID string, link identity.GoogleLink, task Task) (string, error) {
	if strings.TrimSpace(task.Title) == "" || task.Due.IsZero() {
		return "", fmt.Errorf("google: task title and due date are required")
	}

	svc, err := c.service(ctx, userID, link)
	if err != nil {
		return "", err
	}
	calID, err := c.ensure(ctx, svc)
	if err != nil {
		return "", err
	}

	start := task.Due.UTC()
	ev, err := svc.Events.Insert(calID, &calendar.Event{
		Summary:     task.Title,
		Description: task.Description,
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: c.cfg.TimeZone},
		End:         &calendar.EventDateTime{DateTime: start.Add(time.Hour).Format(time.RFC3339), TimeZone: c.cfg.TimeZone},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("google: insert event: %w", err)
	}
	return ev.Id, nil
}

// DeleteTaskEvent removes eventID from the synced calendar.
func (c *Calendar) DeleteTaskEvent(ctx context.Context, userID string, link identity.GoogleLink, eventID string) error {
	if strings.TrimSpace(eventID) == "" {
		return fmt.Errorf("google: empty event id")
	}

	svc, err := c.service(ctx, userID, link)
	if err != nil {
		return err
	}
	calID, err := c.findSynced(ctx, svc)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(calID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("google: delete event: %w", err)
	}
	return nil
}
