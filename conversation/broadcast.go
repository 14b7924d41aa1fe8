// ABOUTME: Fan-out of state snapshots to observers over buffered channels.
// ABOUTME: Delivery never blocks the machine; a full subscriber loses its oldest snapshot, never the newest.
package conversation

import "sync"

const subscriberBuffer = 64

type broadcaster struct {
	mu          sync.Mutex
	subscribers []chan State
	last        uint64
}

func (b *broadcaster) subscribe() chan State {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan State, subscriberBuffer)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

func (b *broadcaster) unsubscribe(ch <-chan State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subscribers {
		if sub == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// broadcast sends s to every subscriber. Snapshots older than one already
// sent are dropped so observers only ever move forward.
func (b *broadcaster) broadcast(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.Version <= b.last {
		return
	}
	b.last = s.Version
	for _, ch := range b.subscribers {
		select {
		case ch <- s:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
