package mqtt

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/rclights/internal/lights"
)

// ErrQueueFull is returned when the send queue has no room for another
// message. The message is dropped.
var ErrQueueFull = errors.New("mqtt: send queue full")

// ErrClosed is returned by publishes after Close.
var ErrClosed = errors.New("mqtt: publisher closed")

// DefaultQueueSize is the number of messages AsyncPublisher holds while the
// underlying publisher is busy.
const DefaultQueueSize = 64

// AsyncPublisher queues messages for a background goroutine that hands them
// to the underlying Publisher. Publish and PublishSystem never wait on the
// broker, so a stalled link cannot hold up the caller.
type AsyncPublisher struct {
	next         Publisher
	queue        chan asyncMsg
	done         chan struct{}
	log          logrus.FieldLogger
	flushTimeout time.Duration

	mu      sync.Mutex
	closed  bool
	dropped int
}

type asyncMsg struct {
	light  *lights.Event
	system *SystemEvent
}

// NewAsyncPublisher starts the sender goroutine. size < 1 uses
// DefaultQueueSize.
func NewAsyncPublisher(next Publisher, size int, log logrus.FieldLogger) *AsyncPublisher {
	if size < 1 {
		size = DefaultQueueSize
	}
	a := &AsyncPublisher{
		next:         next,
		queue:        make(chan asyncMsg, size),
		done:         make(chan struct{}),
		log:          log,
		flushTimeout: 5 * time.Second,
	}
	go a.run()
	return a
}

func (a *AsyncPublisher) run() {
	defer close(a.done)
	for m := range a.queue {
		if m.light != nil {
			if err := a.next.Publish(*m.light); err != nil {
				a.log.Warnf("mqtt: publish %s: %v", m.light.Channel, err)
			}
			continue
		}
		if err := a.next.PublishSystem(*m.system); err != nil {
			a.log.Warnf("mqtt: publish %s event: %v", m.system.Event, err)
		}
	}
}

func (a *AsyncPublisher) enqueue(m asyncMsg) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- m:
		return nil
	default:
		a.dropped++
		return ErrQueueFull
	}
}

// Publish queues a light transition.
func (a *AsyncPublisher) Publish(event lights.Event) error {
	return a.enqueue(asyncMsg{light: &event})
}

// PublishSystem queues a system event.
func (a *AsyncPublisher) PublishSystem(event SystemEvent) error {
	return a.enqueue(asyncMsg{system: &event})
}

// Dropped returns the number of messages rejected because the queue was full.
func (a *AsyncPublisher) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Close stops accepting messages, waits up to the flush timeout for the
// queue to drain, then closes the underlying publisher.
func (a *AsyncPublisher) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	select {
	case <-a.done:
	case <-time.After(a.flushTimeout):
		a.log.Warnf("mqtt: gave up flushing %d queued messages", len(a.queue))
	}
	return a.next.Close()
}
