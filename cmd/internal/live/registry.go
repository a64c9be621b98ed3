package live

import (
	"log/slog"
	"sync"
)

// Registry is the token <-> connection table.
//
// Both maps change together under one lock: byToken[k] == c iff byConn[c] == k.
// A connection holds at most one token and a token at most one connection.
type Registry struct {
	log *slog.Logger

	mu      sync.Mutex
	byToken map[string]*Client
	byConn  map[*Client]string
}

// NewRegistry constructs an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:     log,
		byToken: make(map[string]*Client),
		byConn:  make(map[*Client]string),
	}
}

// Register binds key to c. The last writer wins: a connection previously bound to
// key loses the binding, and any key c held before is released.
// It returns the connection that was displaced, if any.
func (r *Registry) Register(key string, c *Client) (displaced *Client) {
	if key == "" || c == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConn[c]; ok {
		if prev == key {
			return nil
		}
		delete(r.byToken, prev)
	}
	if old, ok := r.byToken[key]; ok && old != c {
		delete(r.byConn, old)
		displaced = old
	}

	r.byToken[key] = c
	r.byConn[c] = key
	return displaced
}

// Unregister removes whatever binding c holds. Safe to call more than once.
func (r *Registry) Unregister(c *Client) {
	if c == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.byConn[c]
	if !ok {
		return
	}
	delete(r.byConn, c)
	if r.byToken[key] == c {
		delete(r.byToken, key)
	}
}

// PushLogout removes the binding for key and queues a logout event on its
// connection. Lookup and removal are one step, so the event is delivered at most once.
// A connection that cannot take the event is closed.
// It reports whether a connection was registered; a missing key is a no-op.
func (r *Registry) PushLogout(key string) bool {
	if key == "" {
		return false
	}

	r.mu.Lock()
	c, ok := r.byToken[key]
	if ok {
		delete(r.byToken, key)
		delete(r.byConn, c)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	if !c.DeliverLogout() {
		// Closing still ends the session on the client side.
		r.log.Warn("live.push.logout.dropped", "client_id", c.ID)
		c.Close()
	}
	r.log.Info("live.push.logout", "client_id", c.ID, "user_id", c.UserID)
	return true
}

// Lookup returns the connection bound to key.
func (r *Registry) Lookup(key string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byToken[key]
	return c, ok
}

// KeyOf returns the key bound to c.
func (r *Registry) KeyOf(c *Client) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.byConn[c]
	return k, ok
}

// Len returns the number of bindings.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.byToken)
}

// CloseAll drops every binding and signals each connection to stop. Used at shutdown,
// since the HTTP server does not track hijacked connections.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.byConn))
	for c := range r.byConn {
		clients = append(clients, c)
	}
	r.byToken = make(map[string]*Client)
	r.byConn = make(map[*Client]string)
	r.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	return len(clients)
}
