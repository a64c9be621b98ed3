package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/security/token"
)

type memStore struct {
	mu    sync.Mutex
	rows  map[string]Record
	seq   int
	calls []string
}

func newMemStore() *memStore { return &memStore{rows: make(map[string]Record)} }

func (m *memStore) Create(_ context.Context, now time.Time, userID, tokenHash string, dev Device) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := "s" + strings.Repeat("0", 3) + string(rune('0'+m.seq))
	m.rows[id] = Record{ID: id, UserID: userID, TokenHash: tokenHash, DeviceInfo: dev.Info, IPAddress: dev.IP, Location: dev.Location, LoginTime: now, LastActivity: now}
	m.calls = append(m.calls, "create")
	return id, nil
}

func (m *memStore) ListLatestPerDevice(_ context.Context, userID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) DeleteForUser(_ context.Context, sessionID, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete")
	r, ok := m.rows[sessionID]
	if !ok || r.UserID != userID {
		return "", ErrSessionNotFound
	}
	delete(m.rows, sessionID)
	return r.TokenHash, nil
}

func (m *memStore) TouchByTokenHash(_ context.Context, now time.Time, tokenHash string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rows {
		if r.TokenHash == tokenHash {
			r.LastActivity = now
			m.rows[id] = r
			return r, nil
		}
	}
	return Record{}, ErrSessionNotFound
}

// recordingNotifier checks that the row is already gone when the push happens.
type recordingNotifier struct {
	store  *memStore
	pushed []string
	rowsAt []int
}

func (n *recordingNotifier) PushLogout(key string) bool {
	n.store.mu.Lock()
	n.rowsAt = append(n.rowsAt, len(n.store.rows))
	n.store.calls = append(n.store.calls, "push")
	n.store.mu.Unlock()
	n.pushed = append(n.pushed, key)
	return true
}

func newTestService(t *testing.T) (*Service, *memStore, *recordingNotifier) {
	t.Helper()

	cfg := testConfig(FormatJWT)
	iss, err := NewIssuer(cfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	st := newMemStore()
	n := &recordingNotifier{store: st}
	return NewService(cfg, st, iss, token.Hasher{}, WithNotifier(n)), st, n
}

func TestService_RevokeDeletesBeforePush(t *testing.T) {
	t.Parallel()

	svc, st, n := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tok, _, err := svc.IssueLoginToken("u1", "u1@x.com", now)
	if err != nil {
		t.Fatalf("IssueLoginToken: %v", err)
	}
	id, err := svc.RecordSession(ctx, now, tok, "u1", Device{Info: "Firefox", IP: "1.2.3.4"})
	if err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	if err := svc.RevokeSession(ctx, id, "u1"); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}

	if len(n.pushed) != 1 || n.pushed[0] != svc.TokenKey(tok) {
		t.Fatalf("expected one push for the token digest, got %v", n.pushed)
	}
	if n.rowsAt[0] != 0 {
		t.Fatalf("push happened before delete (rows=%d)", n.rowsAt[0])
	}
	want := []string{"create", "delete", "push"}
	if strings.Join(st.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("call order = %v, want %v", st.calls, want)
	}
}

func TestService_RevokeOtherUsersSessionIsNotFound(t *testing.T) {
	t.Parallel()

	svc, _, n := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tok, _, _ := svc.IssueLoginToken("owner", "", now)
	id, err := svc.RecordSession(ctx, now, tok, "owner", Device{})
	if err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	if err := svc.RevokeSession(ctx, id, "intruder"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := svc.RevokeSession(ctx, "", "owner"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for empty id, got %v", err)
	}
	if len(n.pushed) != 0 {
		t.Fatalf("no push expected, got %v", n.pushed)
	}

	if _, err := svc.Authenticate(ctx, tok, now); err != nil {
		t.Fatalf("owner session should survive: %v", err)
	}
}

func TestService_AuthenticateAfterRevoke(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	tok, _, _ := svc.IssueLoginToken("u1", "", now)
	id, err := svc.RecordSession(ctx, now, tok, "u1", Device{Info: "Chrome"})
	if err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	c, err := svc.Authenticate(ctx, tok, now)
	if err != nil || c.UserID != "u1" {
		t.Fatalf("Authenticate: %+v %v", c, err)
	}

	if err := svc.RevokeSession(ctx, id, "u1"); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if _, err := svc.Authenticate(ctx, tok, now); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "garbage", now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestService_StateTokensAreNotSessions(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	now := time.Now().UTC()

	state, err := svc.IssueState("u1", now)
	if err != nil {
		t.Fatalf("IssueState: %v", err)
	}
	if uid, err := svc.VerifyState(state, now); err != nil || uid != "u1" {
		t.Fatalf("VerifyState = %q, %v", uid, err)
	}
	if _, err := svc.Verify(state, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("state token accepted as session: %v", err)
	}
	if _, err := svc.VerifyState(state, now.Add(11*time.Minute)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired state accepted: %v", err)
	}

	login, _, _ := svc.IssueLoginToken("u1", "", now)
	if _, err := svc.VerifyState(login, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("session token accepted as state: %v", err)
	}
}

func TestService_ListMarksCurrent(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a, _, _ := svc.IssueLoginToken("u1", "", now)
	b, _, _ := svc.IssueLoginToken("u1", "", now)
	if _, err := svc.RecordSession(ctx, now, a, "u1", Device{Info: "A"}); err != nil {
		t.Fatalf("RecordSession a: %v", err)
	}
	if _, err := svc.RecordSession(ctx, now, b, "u1", Device{Info: "B"}); err != nil {
		t.Fatalf("RecordSession b: %v", err)
	}

	views, err := svc.ListSessions(ctx, "u1", b)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	for _, v := range views {
		if v.Current != (v.DeviceInfo == "B") {
			t.Fatalf("wrong current flag on %+v", v)
		}
		if v.Location != UnknownLocation {
			t.Fatalf("expected fallback location, got %q", v.Location)
		}
	}
}
