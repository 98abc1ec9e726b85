// Package publisher decouples audit emission from persistence. In sync mode
// Emit writes straight to the store; with an async buffer a background
// worker drains a channel so hot paths never wait on the sink.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"timeclock/pkg/audit"
	"timeclock/pkg/requestcontext"
)

type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	inbox     chan audit.Event
	wg        sync.WaitGroup
	closed    chan struct{}
	closeOnce sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to asynchronous mode with the given
// channel capacity. Events are dropped (and logged) when the buffer is full;
// audit must never block ingestion.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an audit event. It enriches the event with an ID, timestamp,
// and request correlation before handing it to the store.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	// inbox is never closed: Close signals the drain goroutine through the
	// closed channel instead, so a racing Emit can never hit a closed send.
	// At worst it enqueues one event the final flush misses.
	select {
	case <-p.closed:
		return nil
	case p.inbox <- event:
		return nil
	default:
		p.logger.Warn("audit buffer full, dropping event",
			"action", event.Action, "event_id", event.EventID)
		return nil
	}
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for {
		select {
		case event := <-p.inbox:
			p.append(event)
		case <-p.closed:
			// Flush what is already buffered, then stop.
			for {
				select {
				case event := <-p.inbox:
					p.append(event)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) append(event audit.Event) {
	if err := p.store.Append(context.Background(), event); err != nil {
		p.logger.Error("audit append failed",
			"action", event.Action, "error", err)
	}
}

// Close stops the async worker after flushing buffered events. Safe to call
// more than once and safe to race with Emit.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.wg.Wait()
	})
}
