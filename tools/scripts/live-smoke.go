// Package main provides a CI-friendly smoke test for the live revocation channel.
//
// Against a running server and an existing account it validates:
//   - login issues a token and records a session
//   - register over the websocket is acknowledged
//   - revoking that session from a second login pushes logout to the socket
//   - the revoked token no longer verifies
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "github.com/A1dos-Creations/login-api-website/shared/contracts/live/v1"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 16

type smokeClient struct {
	conn  *websocket.Conn
	inbox chan v1.Event
	errCh chan error
}

func main() {
	var (
		base     = flag.String("base", "http://127.0.0.1:3002", "HTTP base URL")
		email    = flag.String("email", os.Getenv("SMOKE_EMAIL"), "Account email")
		password = flag.String("password", os.Getenv("SMOKE_PASSWORD"), "Account password")
		origin   = flag.String("origin", "http://127.0.0.1:3000", "Origin header to send (browser-like WS handshake)")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if *email == "" || *password == "" {
		fatalf("-email and -password (or SMOKE_EMAIL / SMOKE_PASSWORD) are required")
	}
	wsURL, err := liveURL(*base)
	if err != nil {
		fatalf("invalid -base: %v", err)
	}

	root := context.Background()
	hc := &http.Client{Timeout: *timeout}

	tokA := mustLogin(hc, *base, *email, *password, "live-smoke-A")
	tokB := mustLogin(hc, *base, *email, *password, "live-smoke-B")

	c := mustConnect(root, wsURL, *origin, *timeout)
	defer closeWS(c.conn)

	mustWriteWithTimeout(root, c.conn, v1.RegisterMessage{Token: tokA}, *timeout)
	c.mustReadUntilAction(root, v1.ActionRegistered, *timeout)
	if *verbose {
		fmt.Printf("registered on %s\n", wsURL)
	}

	sessionID := mustFindSession(hc, *base, tokB, "live-smoke-A")
	mustPost(hc, *base+"/revoke-session", map[string]string{"token": tokB, "sessionId": sessionID}, http.StatusOK, nil)

	c.mustReadUntilAction(root, v1.ActionLogout, *timeout)

	mustPost(hc, *base+"/verify-token", map[string]string{"token": tokA}, http.StatusUnauthorized, nil)

	fmt.Printf("OK: session=%s revoked and logout pushed\n", sessionID)
}

func liveURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", errors.New("missing host")
	}
	u.Path = "/live"
	return u.String(), nil
}

func mustPost(hc *http.Client, endpoint string, body any, wantStatus int, out any) {
	b, err := json.Marshal(body)
	if err != nil {
		fatalf("marshal: %v", err)
	}
	resp, err := hc.Post(endpoint, "application/json", bytes.NewReader(b))
	if err != nil {
		fatalf("POST %s: %v", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if resp.StatusCode != wantStatus {
		fatalf("POST %s: status=%d want=%d body=%s", endpoint, resp.StatusCode, wantStatus, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			fatalf("decode %s: %v", endpoint, err)
		}
	}
}

func mustLogin(hc *http.Client, base, email, password, device string) string {
	b, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequest(http.MethodPost, base+"/login-user", bytes.NewReader(b))
	if err != nil {
		fatalf("login request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", device)

	resp, err := hc.Do(req)
	if err != nil {
		fatalf("login (%s): %v", device, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out struct {
		Token string `json:"token"`
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
		fatalf("login (%s): status=%d body=%s", device, resp.StatusCode, raw)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Token == "" {
		fatalf("login (%s): missing token (err=%v)", device, err)
	}
	return out.Token
}

func mustFindSession(hc *http.Client, base, token, device string) string {
	var out struct {
		Sessions []struct {
			ID         string `json:"id"`
			DeviceInfo string `json:"device_info"`
			Current    bool   `json:"current"`
		} `json:"sessions"`
	}
	mustPost(hc, base+"/get-user-sessions", map[string]string{"token": token}, http.StatusOK, &out)
	for _, s := range out.Sessions {
		if s.DeviceInfo == device && !s.Current {
			return s.ID
		}
	}
	fatalf("session for %q not listed", device)
	return ""
}

func mustConnect(parent context.Context, wsURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: h})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect: %v", err)
	}
	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		conn:  conn,
		inbox: make(chan v1.Event, 16),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()
	return c
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			_, data, err := c.conn.Read(context.Background())
			if err != nil {
				select {
				case c.errCh <- err:
				default:
				}
				return
			}

			var ev v1.Event
			if err := json.Unmarshal(data, &ev); err != nil {
				select {
				case c.errCh <- fmt.Errorf("bad json: %w", err):
				default:
				}
				return
			}

			select {
			case c.inbox <- ev:
			default:
				select {
				case c.errCh <- errors.New("inbox overflow: consumer too slow"):
				default:
				}
				return
			}
		}
	}()
}

func (c *smokeClient) mustReadUntilAction(parent context.Context, want string, stepTimeout time.Duration) v1.Event {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q: %v", want, ctx.Err())
		case err := <-c.errCh:
			fatalf("connection error while waiting for %q: %v", want, err)
		case ev, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q", want)
			}
			if ev.Action == want {
				return ev
			}
			if ev.Action == v1.ActionError {
				fatalf("server error: %q", ev.Message)
			}
		}
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, v any, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(v)
	if err != nil {
		fatalf("marshal: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
