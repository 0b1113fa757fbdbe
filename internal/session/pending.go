package session

import (
	"sync"

	"maelstrom-counter/go-node/internal/protocol"
)

// pendingCalls tracks outbound requests awaiting a reply, keyed by the
// msg_id we assigned.
type pendingCalls struct {
	mu      sync.Mutex
	waiters map[int64]chan protocol.Envelope
	closed  bool
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{waiters: make(map[int64]chan protocol.Envelope)}
}

func (p *pendingCalls) register(id int64) (<-chan protocol.Envelope, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrSessionClosed
	}
	ch := make(chan protocol.Envelope, 1)
	p.waiters[id] = ch
	return ch, nil
}

// resolve hands env to the waiter for id. It reports false when nobody is
// waiting, e.g. the call already timed out.
func (p *pendingCalls) resolve(id int64, env protocol.Envelope) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.waiters[id]
	if !ok {
		return false
	}
	delete(p.waiters, id)
	ch <- env
	close(ch)
	return true
}

func (p *pendingCalls) cancel(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.waiters, id)
}

// close fails every outstanding call and rejects new registrations.
func (p *pendingCalls) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for id, ch := range p.waiters {
		close(ch)
		delete(p.waiters, id)
	}
}

func (p *pendingCalls) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
