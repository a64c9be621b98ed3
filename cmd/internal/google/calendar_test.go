package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/identity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCalendarAPI struct {
	mu        sync.Mutex
	calendars map[string]string // id -> summary
	events    map[string]map[string]any
	created   int
	deleted   []string
	authSeen  []string
}

func newFakeCalendarAPI() *fakeCalendarAPI {
	return &fakeCalendarAPI{calendars: map[string]string{}, events: map[string]map[string]any{}}
}

func (f *fakeCalendarAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authSeen = append(f.authSeen, r.Header.Get("Authorization"))

	path := strings.TrimPrefix(r.URL.Path, "/calendar/v3/")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && path == "users/me/calendarList":
		items := make([]map[string]string, 0, len(f.calendars))
		for id, summary := range f.calendars {
			items = append(items, map[string]string{"id": id, "summary": summary})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})

	case r.Method == http.MethodPost && path == "calendars":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.created++
		id := "cal-" + string(rune('0'+f.created))
		f.calendars[id] = body["summary"].(string)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "summary": body["summary"], "timeZone": body["timeZone"]})

	case r.Method == http.MethodPost && strings.HasSuffix(path, "/events"):
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		id := "evt-" + string(rune('a'+len(f.events)))
		f.events[id] = body
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id})

	case r.Method == http.MethodDelete && strings.Contains(path, "/events/"):
		f.deleted = append(f.deleted, path[strings.LastIndex(path, "/")+1:])
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

type savedLinks struct {
	mu    sync.Mutex
	links []identity.GoogleLink
}

func (s *savedLinks) SaveGoogleLink(_ context.Context, _ string, link identity.GoogleLink, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = append(s.links, link)
	return nil
}

func newTestCalendar(t *testing.T, api http.Handler, tokenURL string, saver TokenSaver) *Calendar {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := testOAuthConfig(tokenURL)
	cfg.CalendarEndpoint = srv.URL + "/calendar/v3/"
	o, err := NewOAuth(cfg)
	require.NoError(t, err)
	return NewCalendar(o, cfg, saver, nil)
}

func freshLink() identity.GoogleLink {
	exp := time.Now().Add(time.Hour)
	return identity.GoogleLink{AccessToken: "at-live", RefreshToken: "rt", Expiry: &exp}
}

func TestCalendar_EnsureCreatesOnce(t *testing.T) {
	api := newFakeCalendarAPI()
	c := newTestCalendar(t, api, "", nil)
	ctx := context.Background()

	id1, err := c.EnsureSyncedCalendar(ctx, "u1", freshLink())
	require.NoError(t, err)
	id2, err := c.EnsureSyncedCalendar(ctx, "u1", freshLink())
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, api.created)
	assert.Equal(t, DefaultConfig().CalendarName, api.calendars[id1])
	assert.Contains(t, api.authSeen, "Bearer at-live")
}

func TestCalendar_AddTaskEventIsOneHour(t *testing.T) {
	api := newFakeCalendarAPI()
	c := newTestCalendar(t, api, "", nil)

	due := time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)
	id, err := c.AddTaskEvent(context.Background(), "u1", freshLink(), Task{Title: "Essay", Description: "draft", Due: due})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ev := api.events[id]
	assert.Equal(t, "Essay", ev["summary"])
	start := ev["start"].(map[string]any)["dateTime"].(string)
	end := ev["end"].(map[string]any)["dateTime"].(string)
	assert.Equal(t, "2026-03-01T17:00:00Z", start)
	assert.Equal(t, "2026-03-01T18:00:00Z", end)
}

func TestCalendar_AddTaskEventValidates(t *testing.T) {
	c := newTestCalendar(t, newFakeCalendarAPI(), "", nil)
	_, err := c.AddTaskEvent(context.Background(), "u1", freshLink(), Task{Title: ""})
	require.Error(t, err)
}

func TestCalendar_DeleteRequiresSyncedCalendar(t *testing.T) {
	api := newFakeCalendarAPI()
	c := newTestCalendar(t, api, "", nil)

	err := c.DeleteTaskEvent(context.Background(), "u1", freshLink(), "evt-a")
	require.ErrorIs(t, err, ErrCalendarNotFound)

	api.calendars["cal-x"] = DefaultConfig().CalendarName
	require.NoError(t, c.DeleteTaskEvent(context.Background(), "u1", freshLink(), "evt-a"))
	assert.Equal(t, []string{"evt-a"}, api.deleted)
}

func TestCalendar_NotLinked(t *testing.T) {
	c := newTestCalendar(t, newFakeCalendarAPI(), "", nil)
	_, err := c.EnsureSyncedCalendar(context.Background(), "u1", identity.GoogleLink{})
	require.ErrorIs(t, err, ErrNotLinked)
}

func TestCalendar_RefreshedTokenIsPersisted(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "rt" {
			http.Error(w, "unexpected grant", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-refreshed",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenSrv.Close()

	api := newFakeCalendarAPI()
	saver := &savedLinks{}
	c := newTestCalendar(t, api, tokenSrv.URL, saver)

	expired := time.Now().Add(-time.Hour)
	link := identity.GoogleLink{AccessToken: "at-old", RefreshToken: "rt", Expiry: &expired}

	_, err := c.EnsureSyncedCalendar(context.Background(), "u1", link)
	require.NoError(t, err)

	require.NotEmpty(t, saver.links)
	assert.Equal(t, "at-refreshed", saver.links[0].AccessToken)
	assert.Contains(t, api.authSeen, "Bearer at-refreshed")
}
