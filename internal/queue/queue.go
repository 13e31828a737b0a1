// Package queue decouples the scan cycle from notification delivery. The
// scanner pushes messages and returns immediately; a background loop fans
// them out to the subscribed senders.
package queue

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// MessageQueue is an in-memory queue of formatted notification messages.
type MessageQueue struct {
	items    chan string
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func(string) error
}

// NewMessageQueue creates a queue with the specified buffer size.
func NewMessageQueue(bufferSize int, logger *logrus.Logger) *MessageQueue {
	return &MessageQueue{
		items:    make(chan string, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func(string) error, 0),
	}
}

// Push enqueues a message. It never blocks: a full buffer drops the message
// with ErrQueueFull so a slow sender cannot stall the scan cycle.
func (q *MessageQueue) Push(message string) error {
	// The lock is held across the send so Close cannot close the channel
	// between the closed check and the send. The send never blocks.
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- message:
		q.logger.Debug("Pushed notification to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler that will be called for each message.
func (q *MessageQueue) Subscribe(handler func(string) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins delivering queued messages in the background.
func (q *MessageQueue) Start() {
	go q.process()
}

func (q *MessageQueue) process() {
	for {
		select {
		case <-q.done:
			return
		case message := <-q.items:
			q.dispatch(message)
		}
	}
}

// dispatch sends the message to all subscribed handlers. A failing handler
// never blocks the others.
func (q *MessageQueue) dispatch(message string) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(message); err != nil {
			q.logger.WithError(err).Error("Notification handler failed")
		}
	}
}

// Close stops the queue and prevents new messages from being added.
func (q *MessageQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.done)
	close(q.items)
	return nil
}

// Len returns the current number of queued messages.
func (q *MessageQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed.
func (q *MessageQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
