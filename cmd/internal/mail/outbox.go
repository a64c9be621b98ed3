package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/internal/metrics"
)

// Outbox sends messages asynchronously. Failures are logged and counted, never
// returned to the caller.
type Outbox struct {
	sender  Sender
	timeout time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

type OutboxOption func(*Outbox)

func WithLogger(l *slog.Logger) OutboxOption {
	return func(o *Outbox) {
		if l != nil {
			o.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) OutboxOption {
	return func(o *Outbox) { o.metrics = m }
}

// WithSendTimeout bounds each delivery.
func WithSendTimeout(d time.Duration) OutboxOption {
	return func(o *Outbox) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func NewOutbox(sender Sender, opts ...OutboxOption) *Outbox {
	o := &Outbox{
		sender:  sender,
		timeout: 30 * time.Second,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Enqueue renders template name for to and sends it in the background.
// Render errors are logged like delivery errors.
func (o *Outbox) Enqueue(name, to string, d Data) {
	if o == nil {
		return
	}
	m, err := Render(name, to, d)
	if err != nil {
		o.log.Error("mail.render.fail", "template", name, "err", err)
		o.metrics.MailSent(name, false)
		return
	}
	o.Send(m)
}

// Send delivers m in the background. Messages sent after Close are dropped.
func (o *Outbox) Send(m Message) {
	if o == nil {
		return
	}
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.log.Warn("mail.send.dropped", "template", m.Template, "reason", "outbox closed")
		return
	}
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()

		if err := o.sender.Send(ctx, m); err != nil {
			o.log.Error("mail.send.fail", "template", m.Template, "err", err)
			o.metrics.MailSent(m.Template, false)
			return
		}
		o.log.Debug("mail.send.ok", "template", m.Template)
		o.metrics.MailSent(m.Template, true)
	}()
}

// Close stops accepting messages and waits for in-flight sends until ctx is done.
func (o *Outbox) Close(ctx context.Context) error {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
