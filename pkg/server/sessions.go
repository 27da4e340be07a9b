package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zdunecki/onboarding/pkg/wizard"
)

// hosted is one wizard run kept by the server. mu serializes operations on
// the run; the table lock only guards membership.
type hosted struct {
	mu      sync.Mutex
	id      string
	machine *wizard.Machine
	st      wizard.State
	subs    []*wizard.Submission
	touched time.Time
}

// settle folds finished submissions into the state. Caller holds h.mu.
func (h *hosted) settle() {
	kept := h.subs[:0]
	for _, sub := range h.subs {
		select {
		case <-sub.Done():
			h.st = wizard.Settle(h.st, sub)
		default:
			kept = append(kept, sub)
		}
	}
	h.subs = kept
}

// sessionTable is a small in-memory registry of hosted runs.
type sessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*hosted
}

func newSessionTable() *sessionTable {
	return &sessionTable{sessions: map[string]*hosted{}}
}

func (t *sessionTable) add(machine *wizard.Machine, st wizard.State) *hosted {
	h := &hosted{
		id:      uuid.New().String(),
		machine: machine,
		st:      st,
		touched: time.Now(),
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[h.id] = h
	return h
}

func (t *sessionTable) get(id string) (*hosted, error) {
	t.mu.RLock()
	h, ok := t.sessions[id]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown session: %s", id)
	}
	return h, nil
}

func (t *sessionTable) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[id]; !ok {
		return false
	}
	delete(t.sessions, id)
	return true
}

func (t *sessionTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// expire drops runs untouched since before cutoff and returns how many.
func (t *sessionTable) expire(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, h := range t.sessions {
		h.mu.Lock()
		stale := h.touched.Before(cutoff) && len(h.subs) == 0
		h.mu.Unlock()
		if stale {
			delete(t.sessions, id)
			n++
		}
	}
	return n
}
