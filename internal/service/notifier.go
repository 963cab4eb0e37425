package service

import (
	"sync"

	"github.com/tejashwikalptaru/lyra/internal/domain"
	"github.com/tejashwikalptaru/lyra/internal/ports"
)

// notifier runs publications on its own goroutine, in submission order.
// Bus handlers therefore never run on the controller loop and may call back into it.
//
// close must not be called from a task or handler run by the notifier itself.
type notifier struct {
	bus ports.EventBus

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newNotifier(bus ports.EventBus) *notifier {
	n := &notifier{
		bus:  bus,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go n.run()
	return n
}

// publish queues an event for the bus. Dropped after close.
func (n *notifier) publish(event domain.Event) {
	if n.bus == nil {
		return
	}
	n.enqueue(func() { n.bus.Publish(event) })
}

// enqueue queues an arbitrary task. Dropped after close.
func (n *notifier) enqueue(task func()) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.queue = append(n.queue, task)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run() {
	defer close(n.done)

	for {
		n.mu.Lock()
		batch := n.queue
		n.queue = nil
		closed := n.closed
		n.mu.Unlock()

		for _, task := range batch {
			task()
		}

		if len(batch) == 0 {
			if closed {
				return
			}
			<-n.wake
		}
	}
}

// close stops accepting work, drains what is queued and waits for the goroutine.
func (n *notifier) close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		<-n.done
		return
	}
	n.closed = true
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
	<-n.done
}
