package app

import (
	"net/http"
	"time"
)

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /readyz", a.handleReady)
	mux.Handle("GET /metrics", a.metrics.Handler())
	mux.Handle("GET /live", a.gateway)
	// Extension clients open the socket on the bare host.
	mux.Handle("GET /{$}", a.gateway)

	a.auth.Register(mux)

	var h http.Handler = mux
	h = WithCORS(h, a.cfg, a.log)
	h = WithSecurityHeaders(h)
	h = WithRequestLogging(h, a.log, a.metrics)
	h = WithRecover(h, a.log)
	h = WithRequestID(h)
	return h
}

// handleReady reports whether the process can serve traffic. Redis, when configured,
// only degrades code rate limiting, so it is reported but never fails readiness.
func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := PingDB(r.Context(), a.pool, 2*time.Second); err != nil {
		a.log.Warn("readyz.db.not_ready", "err", err)
		if a.cfg.ReadinessRequireDB {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
	}

	if a.redis != nil {
		if err := a.redis.Ping(r.Context()).Err(); err != nil {
			a.log.Warn("readyz.redis.not_ready", "err", err)
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}
