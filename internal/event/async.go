package event

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"clubvote/internal/domain"
)

// DefaultPublishTimeout bounds a single call to the wrapped publisher
const DefaultPublishTimeout = 5 * time.Second

// AsyncPublisher queues events and hands them to another Publisher from a
// single goroutine. Publish never blocks and never drops; events reach the
// wrapped publisher in the order they were queued.
type AsyncPublisher struct {
	next    Publisher
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	pending []*domain.ElectionEvent
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
}

// NewAsyncPublisher starts the delivery goroutine for next
func NewAsyncPublisher(next Publisher, timeout time.Duration, logger *slog.Logger) *AsyncPublisher {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}

	p := &AsyncPublisher{
		next:    next,
		timeout: timeout,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}

	go p.run()

	return p
}

// Publish queues ev. It fails only after Close.
func (p *AsyncPublisher) Publish(_ context.Context, ev *domain.ElectionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}
	p.pending = append(p.pending, ev)

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of queued events not yet delivered
func (p *AsyncPublisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Close delivers everything still queued and stops the goroutine.
// The wrapped publisher stays open; its owner closes it.
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.wake)
	}
	p.mu.Unlock()

	<-p.stopped
	return nil
}

func (p *AsyncPublisher) run() {
	defer close(p.stopped)

	for {
		batch, open := p.take()
		for _, ev := range batch {
			p.deliver(ev)
		}
		if len(batch) > 0 {
			continue
		}
		if !open {
			return
		}
		<-p.wake
	}
}

// take swaps out the queued events
func (p *AsyncPublisher) take() ([]*domain.ElectionEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	batch := p.pending
	p.pending = nil
	return batch, !p.closed
}

func (p *AsyncPublisher) deliver(ev *domain.ElectionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.next.Publish(ctx, ev); err != nil {
		p.logger.Warn("failed to publish event", "type", ev.Type, "electionID", ev.ElectionID, "error", err)
	}
}
