package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/identity/ids"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/auth/session"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/metrics"
	v1 "github.com/A1dos-Creations/login-api-website/shared/contracts/live/v1"

	"github.com/coder/websocket"
)

// Authenticator resolves a presented token to a live session and to the key the
// registry stores it under.
type Authenticator interface {
	Authenticate(ctx context.Context, token string, now time.Time) (session.Claims, error)
	TokenKey(token string) string
}

// Gateway is the websocket entrypoint of the live channel.
type Gateway struct {
	cfg      Config
	registry *Registry
	auth     Authenticator
	log      *slog.Logger
	metrics  *metrics.Metrics

	originPatterns []string
}

// GatewayOption configures optional Gateway dependencies.
type GatewayOption func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(log *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// NewGateway constructs a Gateway bound to registry.
func NewGateway(cfg Config, registry *Registry, auth Authenticator, opts ...GatewayOption) (*Gateway, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	if registry == nil || auth == nil {
		return nil, fmt.Errorf("%w: registry and authenticator are required", ErrConfig)
	}

	g := &Gateway{
		cfg:      cfg,
		registry: registry,
		auth:     auth,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	// websocket.Accept authorizes same-host origins itself; cross-origin hosts
	// must be listed as patterns so both layers agree.
	g.originPatterns = originPatterns(cfg.AllowedOrigins)
	return g, nil
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("live.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.cfg.InsecureSkipVerify,
	})
	if err != nil {
		g.log.Info("live.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	conn.SetReadLimit(maxFrameBytes)

	now := time.Now().UTC()
	id, err := ids.New(now)
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "id")
		return
	}
	client := NewClient(id, g.cfg.SendQueue)

	g.metrics.LiveConnected(1)
	defer g.metrics.LiveConnected(-1)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			g.registry.Unregister(client)
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			var ev v1.Event
			select {
			case ev = <-client.Logouts():
			default:
				select {
				case <-ctx.Done():
					return
				case <-client.Done():
					return
				case ev = <-client.Logouts():
				case ev = <-client.Send:
				}
			}
			if err := writeEvent(ctx, conn, ev, g.cfg.WriteTimeout); err != nil {
				g.log.Info("live.write.fail", "client_id", client.ID, "close_status", websocket.CloseStatus(err), "err", err)
				shutdown(websocket.StatusAbnormalClosure, "write failed")
				return
			}
			if ev.Action == v1.ActionLogout {
				shutdown(websocket.StatusNormalClosure, "session revoked")
				return
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		g.heartbeat(ctx, conn, client, shutdown)
	}()

	g.readLoop(ctx, conn, client, shutdown)

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(closeGrace):
	}
}

func (g *Gateway) heartbeat(ctx context.Context, conn *websocket.Conn, client *Client, shutdown func(websocket.StatusCode, string)) {
	t := time.NewTicker(g.cfg.HeartbeatInterval)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case <-t.C:
			hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
			err := conn.Ping(hbCtx)
			hbCancel()

			if err != nil {
				failures++
				g.log.Info("live.ping.fail", "client_id", client.ID, "failures", failures, "err", err)
				if failures >= maxPingFailures {
					shutdown(websocket.StatusGoingAway, "heartbeat failed")
					return
				}
				continue
			}
			failures = 0
		}
	}
}

// readLoop waits for the registration message and then keeps reading so pongs and
// close frames are processed. Later registration messages rebind the connection.
// A connection that has not registered within RegisterTimeout is closed.
func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, client *Client, shutdown func(websocket.StatusCode, string)) {
	rl := newRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)

	var registered atomic.Bool
	deadline := time.AfterFunc(g.cfg.RegisterTimeout, func() {
		if !registered.Load() {
			g.log.Info("live.register.timeout", "client_id", client.ID)
			shutdown(websocket.StatusPolicyViolation, "registration timeout")
		}
	})
	defer deadline.Stop()

	for {
		data, err := readFrame(ctx, conn)
		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
			default:
				g.log.Info("live.read.fail", "client_id", client.ID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
			}
			return
		}

		now := time.Now().UTC()
		if !rl.Allow(now) {
			g.reject(ctx, conn, "rate_limited")
			shutdown(websocket.StatusPolicyViolation, "rate limited")
			return
		}

		var msg v1.RegisterMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			client.Deliver(v1.Event{Action: v1.ActionError, Message: "invalid JSON"})
			continue
		}
		if err := msg.Validate(); err != nil {
			client.Deliver(v1.Event{Action: v1.ActionError, Message: err.Error()})
			continue
		}

		tok := strings.TrimSpace(msg.Token)
		claims, err := g.auth.Authenticate(ctx, tok, now)
		switch {
		case errors.Is(err, session.ErrSessionRevoked):
			// The client is holding a dead session; tell it to log out.
			_ = writeEvent(ctx, conn, v1.Logout(), g.cfg.WriteTimeout)
			shutdown(websocket.StatusNormalClosure, "session revoked")
			return
		case err != nil:
			g.log.Info("live.register.reject", "client_id", client.ID, "err", err)
			g.reject(ctx, conn, "invalid token")
			shutdown(websocket.StatusPolicyViolation, "invalid token")
			return
		}

		if registered.Load() && claims.UserID != client.UserID {
			g.reject(ctx, conn, "user mismatch")
			shutdown(websocket.StatusPolicyViolation, "user mismatch")
			return
		}
		if !registered.Load() {
			client.UserID = claims.UserID
		}

		if displaced := g.registry.Register(g.auth.TokenKey(tok), client); displaced != nil {
			g.log.Info("live.register.displaced", "client_id", client.ID, "displaced_id", displaced.ID)
		}
		registered.Store(true)

		// A shutdown racing the registration must not leave a binding behind.
		select {
		case <-client.Done():
			g.registry.Unregister(client)
			return
		default:
		}
		client.Deliver(v1.Event{Action: v1.ActionRegistered})
		g.log.Debug("live.register", "client_id", client.ID, "user_id", client.UserID)
	}
}

// reject writes a terminal error synchronously so it reaches the peer before close.
func (g *Gateway) reject(ctx context.Context, conn *websocket.Conn, msg string) {
	_ = writeEvent(ctx, conn, v1.Event{Action: v1.ActionError, Message: msg}, g.cfg.WriteTimeout)
}

// ---- frame IO ----

func readFrame(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return nil, fmt.Errorf("unsupported message type: %v", mt)
	}
	return data, nil
}

func writeEvent(parent context.Context, conn *websocket.Conn, ev v1.Event, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *Gateway) enforceOrigin(r *http.Request) error {
	if g.cfg.InsecureSkipVerify {
		return nil
	}

	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.cfg.OriginRequired {
			return errors.New("missing origin")
		}
		return nil
	}
	if len(g.cfg.AllowedOrigins) == 0 {
		// websocket.Accept applies the same-host rule.
		return nil
	}

	originHost := originHostOnly(origin)
	for _, a := range g.cfg.AllowedOrigins {
		a = strings.TrimSpace(a)
		switch {
		case a == "":
			continue
		case a == "*":
			return nil
		case strings.EqualFold(origin, a):
			return nil
		case originHost != "" && originHost == originHostOnly(a):
			return nil
		}
	}
	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = strings.TrimSpace(u.Host)
		if s == "" {
			return ""
		}
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// originPatterns derives websocket.Accept host patterns from the allowlist.
func originPatterns(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		a = strings.TrimSpace(a)
		if a == "*" {
			return []string{"*"}
		}
		if h := originHostOnly(a); h != "" {
			seen[h] = struct{}{}
		}
		// Accept matches against host:port, so keep the port-qualified form too.
		if u, err := url.Parse(a); err == nil && strings.Contains(u.Host, ":") {
			seen[strings.ToLower(u.Host)] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}
