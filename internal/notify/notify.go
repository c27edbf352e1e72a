// Package notify decouples status-text delivery from the flight control
// loop. The control thread enqueues without blocking; a single dispatcher
// goroutine drains the queue and forwards messages best-effort.
package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

const defaultBuffer = 64

// Sender forwards a single status message to the messaging front-end.
type Sender interface {
	Send(text string) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(text string) error

func (f SenderFunc) Send(text string) error { return f(text) }

// LogSender writes messages to the logger. Used when no messaging
// front-end is attached.
func LogSender(logger *slog.Logger) Sender {
	return SenderFunc(func(text string) error {
		logger.Info("notification", slog.String("text", text))
		return nil
	})
}

// WithBuffer sets the queue capacity.
func WithBuffer(size int) func(*Dispatcher) {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queue = make(chan string, size)
		}
	}
}

// WithLogger sets the logger for the dispatcher.
func WithLogger(logger *slog.Logger) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.logger = logger.With(slog.String("component", "notify"))
	}
}

// Dispatcher owns the outbound notification queue. Enqueue is safe to call
// from the control thread and never blocks it; delivery failures are logged
// and swallowed. Messages still queued when the context is cancelled are
// dropped.
type Dispatcher struct {
	sender Sender
	queue  chan string
	logger *slog.Logger

	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with a discard logger and the default
// queue capacity.
func NewDispatcher(sender Sender, options ...func(*Dispatcher)) *Dispatcher {
	d := Dispatcher{
		sender: sender,
		queue:  make(chan string, defaultBuffer),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(&d)
	}
	return &d
}

// Start launches the dispatcher goroutine. It runs until the context is
// cancelled, then forwards whatever is still queued before exiting, so a
// summary enqueued right before shutdown is not lost. Calling Start more
// than once has no effect.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					d.drain()
					return
				case text := <-d.queue:
					d.send(text)
				}
			}
		}()
	})
}

func (d *Dispatcher) send(text string) {
	if err := d.sender.Send(text); err != nil {
		d.logger.Warn("sending notification", slog.String("error", err.Error()))
	}
}

// drain forwards currently queued messages without blocking for new ones.
func (d *Dispatcher) drain() {
	for {
		select {
		case text := <-d.queue:
			d.send(text)
		default:
			return
		}
	}
}

// Enqueue queues a message for delivery. When the queue is full the message
// is dropped and the drop is logged; the caller is never blocked.
func (d *Dispatcher) Enqueue(text string) {
	select {
	case d.queue <- text:
	default:
		d.logger.Warn("notification queue full, dropping message")
	}
}

// Wait blocks until the dispatcher goroutine has exited. Call after
// cancelling the context passed to Start.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
