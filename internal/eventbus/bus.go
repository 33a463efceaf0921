// Package eventbus fans session lifecycle events out to subscribers on a
// bounded worker pool.
package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// EventType represents the type of event
type EventType string

const (
	EventTypeConnected         EventType = "connected"
	EventTypeConnectFailed     EventType = "connect_failed"
	EventTypeControllerAdded   EventType = "controller_added"
	EventTypeControllerRemoved EventType = "controller_removed"
	EventTypeLoopStarted       EventType = "loop_started"
	EventTypeLoopStopped       EventType = "loop_stopped"
)

// AllEventTypes lists every type published by the daemon.
var AllEventTypes = []EventType{
	EventTypeConnected,
	EventTypeConnectFailed,
	EventTypeControllerAdded,
	EventTypeControllerRemoved,
	EventTypeLoopStarted,
	EventTypeLoopStopped,
}

// Default configuration
const (
	DefaultWorkerCount = 1
	DefaultQueueSize   = 64
)

// Event is a single lifecycle notification
type Event struct {
	Type EventType
	Data map[string]any
}

// Handler is a function that handles events
type Handler func(Event)

type work struct {
	event   Event
	handler Handler
}

// Bus routes events to handlers through a worker pool. A nil *Bus is valid
// and drops everything, so publishers never need to check for one.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler

	workQueue chan work
	wg        sync.WaitGroup

	closing   chan struct{}
	closeOnce sync.Once
}

// New creates a new event bus with default settings
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates a new event bus with custom worker count and queue size
func NewWithConfig(workerCount, queueSize int) *Bus {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	b := &Bus{
		handlers:  make(map[EventType][]Handler),
		workQueue: make(chan work, queueSize),
		closing:   make(chan struct{}),
	}

	for i := 0; i < workerCount; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}

	log.Debug().Int("workers", workerCount).Int("queue_size", queueSize).Msg("Event bus started")
	return b
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()

	for w := range b.workQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("event_type", string(w.event.Type)).
						Int("worker", id).
						Msg("Event handler panicked")
				}
			}()
			w.handler(w.event)
		}()
	}
}

// Subscribe registers a handler for the given event types
func (b *Bus) Subscribe(handler Handler, types ...EventType) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range types {
		b.handlers[t] = append(b.handlers[t], handler)
	}
}

// Publish queues the event for every subscribed handler.
// Never blocks: when the queue is full or the bus is closing the event is dropped.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}

	// Read lock held across the sends so Close cannot close the queue under us.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, handler := range b.handlers[event.Type] {
		select {
		case <-b.closing:
			log.Debug().Str("event_type", string(event.Type)).Msg("Event bus closing, dropping event")
			return
		default:
		}

		select {
		case b.workQueue <- work{event: event, handler: handler}:
		default:
			log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event bus queue full, dropping event")
		}
	}
}

// Close stops accepting events, drains the queue and waits for workers
// until ctx expires.
func (b *Bus) Close(ctx context.Context) {
	if b == nil {
		return
	}

	first := false
	b.closeOnce.Do(func() {
		close(b.closing)
		first = true
	})
	if !first {
		return
	}

	b.mu.Lock()
	b.handlers = make(map[EventType][]Handler)
	close(b.workQueue)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Msg("Event bus workers stopped")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, some events may be lost")
	}
}
