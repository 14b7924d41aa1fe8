// ABOUTME: Citation records and the per-turn Tracker that accumulates them in arrival order.
// ABOUTME: Numbers are unique within a turn; malformed and duplicate records are dropped.

package citation

import (
	"fmt"
	"sync"
)

// Citation points at a page of a source document backing part of an answer.
type Citation struct {
	Number  int    `json:"number"`
	Source  string `json:"source"`
	Page    int    `json:"page"`
	Excerpt string `json:"excerpt"`
}

// Valid reports whether c has a positive number and page and a source.
func (c Citation) Valid() bool {
	return c.Number > 0 && c.Page > 0 && c.Source != ""
}

// String renders the citation the way generation prompts quote it.
func (c Citation) String() string {
	return fmt.Sprintf("[%d] %s p.%d: %s", c.Number, c.Source, c.Page, c.Excerpt)
}

// Tracker is an append-only, number-keyed list of citations for one turn.
// It is safe for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	order []Citation
	byNum map[int]int
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{byNum: make(map[int]int)}
}

// Add appends c. It returns false, leaving the tracker unchanged, when c is
// malformed or its number was already recorded this turn.
func (t *Tracker) Add(c Citation) bool {
	if !c.Valid() {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byNum == nil {
		t.byNum = make(map[int]int)
	}
	if _, dup := t.byNum[c.Number]; dup {
		return false
	}
	t.byNum[c.Number] = len(t.order)
	t.order = append(t.order, c)
	return true
}

// Lookup finds a citation by its backend-assigned number.
func (t *Tracker) Lookup(number int) (Citation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.byNum[number]
	if !ok {
		return Citation{}, false
	}
	return t.order[idx], true
}

// All returns a copy of the citations in arrival order.
func (t *Tracker) All() []Citation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Citation, len(t.order))
	copy(out, t.order)
	return out
}

// First returns the earliest citation, the anchor for page-image retrieval.
func (t *Tracker) First() (Citation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.order) == 0 {
		return Citation{}, false
	}
	return t.order[0], true
}

// Len returns the number of recorded citations.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Clear empties the tracker for a new turn.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = nil
	t.byNum = make(map[int]int)
}
