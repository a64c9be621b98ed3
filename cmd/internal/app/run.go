package app

import (
	"context"
	"net"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
)

// Run is the CLI entrypoint used by cmd/loginapi.
// It returns an error instead of calling os.Exit to keep defers effective and lint clean.
func Run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	log := NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		log.Error("server.init.fail", "err", err)
		return err
	}
	return a.Run(ctx)
}

// runtimeBaseURL is the URL a local client would use to reach addr.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// wsBaseURL maps an http(s) base URL to its ws(s) form.
func wsBaseURL(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "ws://" + strings.TrimPrefix(base, "//")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}
