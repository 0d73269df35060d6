// Package notification delivers lockout events to the credential store
// off the login request path.
package notification

import (
	"context"
	"log/slog"
	"sync"

	"loginguard/pkg/domain"
)

// Flagger is the single write the lockout handler performs. Setting the
// flag is idempotent, so duplicate deliveries are harmless.
type Flagger interface {
	SetTooManyAttempts(ctx context.Context, identifier string) error
}

// Dispatcher is an in-process lockout notifier: a bounded channel with a
// background worker. Publish never blocks the request path; if the
// buffer is full the event is dropped and logged, and a later threshold
// crossing will publish again.
type Dispatcher struct {
	events  chan domain.LockoutEvent
	done    chan struct{}
	flagger Flagger
	logger  *slog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewDispatcher creates a dispatcher with the given buffer size and
// starts its worker.
func NewDispatcher(flagger Flagger, logger *slog.Logger, buffer int) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 64
	}
	d := &Dispatcher{
		events:  make(chan domain.LockoutEvent, buffer),
		done:    make(chan struct{}),
		flagger: flagger,
		logger:  logger,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Publish enqueues a lockout event without blocking. Events published
// after Close are dropped; the events channel itself is never closed,
// so a request handler that outlives shutdown cannot panic here.
func (d *Dispatcher) Publish(_ context.Context, event domain.LockoutEvent) error {
	select {
	case <-d.done:
		d.logger.Warn("lockout event dropped, dispatcher closed",
			"identifier", event.Identifier,
			"source_address", event.SourceAddress,
		)
		return nil
	default:
	}

	select {
	case d.events <- event:
	default:
		d.logger.Error("lockout event dropped, queue full",
			"identifier", event.Identifier,
			"source_address", event.SourceAddress,
		)
	}
	return nil
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.events:
			d.handle(event)
		case <-d.done:
			// Drain whatever was buffered before shutdown.
			for {
				select {
				case event := <-d.events:
					d.handle(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) handle(event domain.LockoutEvent) {
	// Detached from the originating request, which may already have
	// completed.
	if err := d.flagger.SetTooManyAttempts(context.Background(), event.Identifier); err != nil {
		d.logger.Error("failed to flag account after lockout",
			"error", err,
			"identifier", event.Identifier,
		)
		return
	}
	d.logger.Info("account flagged after lockout",
		"identifier", event.Identifier,
		"source_address", event.SourceAddress,
	)
}

// Close stops accepting events and waits for the worker to drain the
// queue.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}
