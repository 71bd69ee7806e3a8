package event

import (
	"context"
	"errors"

	"clubvote/internal/domain"
)

// ErrPublisherClosed is returned when publishing after Close
var ErrPublisherClosed = errors.New("publisher closed")

// Publisher forwards election events to an external sink
type Publisher interface {
	Publish(ctx context.Context, ev *domain.ElectionEvent) error
	Close() error
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *domain.ElectionEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
