package alerts

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrQueueFull = errors.New("email queue full")
	ErrClosed    = errors.New("dispatcher closed")
)

// Dispatcher sends emails on a fixed pool of goroutines so callers never
// wait on the mail provider. Used when no Redis queue is configured.
type Dispatcher struct {
	next    Notifier
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan EmailEnvelope
	wg     sync.WaitGroup
}

func NewDispatcher(next Notifier, workers, buffer int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 64
	}
	d := &Dispatcher{
		next:    next,
		logger:  logger,
		timeout: 30 * time.Second,
		jobs:    make(chan EmailEnvelope, buffer),
	}
	d.wg.Add(workers)
	for range workers {
		go d.run()
	}
	return d
}

// Send queues the email and returns immediately. The caller's context only
// bounds the hand-off, not delivery.
func (d *Dispatcher) Send(_ context.Context, to, subject, html string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.jobs <- EmailEnvelope{To: to, Subject: subject, Body: html, Enqueued: time.Now().UTC()}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for env := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.next.Send(ctx, env.To, env.Subject, env.Body); err != nil {
			d.logger.Warn("email send failed", "to", env.To, "subject", env.Subject, "error", err)
		}
		cancel()
	}
}

// Close stops accepting emails and waits for queued ones until ctx ends.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
