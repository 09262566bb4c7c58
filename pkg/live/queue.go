package live

import (
	"context"
	"errors"
)

var ErrQueueFull = errors.New("event queue full")

// Queue is a bounded FIFO of events. Any number of producers, one consumer.
type Queue struct {
	events chan Event
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{events: make(chan Event, size)}
}

// Publish blocks until the event is queued or ctx is done
func (q *Queue) Publish(ctx context.Context, event Event) error {
	select {
	case q.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPublish queues the event without blocking
func (q *Queue) TryPublish(event Event) error {
	select {
	case q.events <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) Events() <-chan Event {
	return q.events
}

func (q *Queue) Len() int {
	return len(q.events)
}
