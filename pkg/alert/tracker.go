package alert

import (
	"fmt"
	"sort"
	"sync"
)

// Set is a set of alert messages.
type Set map[string]struct{}

func NewSet(alerts []Alert) Set {
	s := make(Set, len(alerts))
	for _, a := range alerts {
		s[a.Message] = struct{}{}
	}
	return s
}

func (s Set) Has(msg string) bool {
	_, ok := s[msg]
	return ok
}

func (s Set) Sorted() []string {
	msgs := make([]string, 0, len(s))
	for m := range s {
		msgs = append(msgs, m)
	}
	sort.Strings(msgs)
	return msgs
}

// Tracker remembers the alerts of the previous cycle so only new ones are
// announced.
type Tracker struct {
	mu       sync.Mutex
	store    Store
	previous []Alert
}

func NewTracker(store Store) (*Tracker, error) {
	previous, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load alert state: %w", err)
	}
	return &Tracker{store: store, previous: previous}, nil
}

func (t *Tracker) Previous() []Alert {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Alert(nil), t.previous...)
}

// Round is one cycle's alerts diffed against the previous cycle.
type Round struct {
	// Fresh are the alerts to announce, in the order they were reported.
	Fresh []Alert
	next  []Alert
}

// Diff compares current with the previous alerts. Only printers listed in
// answered are judged by current: any other printer, unreachable or not
// polled at all, keeps its previous alerts so they are not announced again
// once it reports. Nothing changes until the round is committed.
func (t *Tracker) Diff(current []Alert, answered []string) Round {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := NewSet(t.previous)

	var fresh []Alert
	for _, a := range current {
		if !prev.Has(a.Message) {
			fresh = append(fresh, a)
		}
	}

	next := append([]Alert(nil), current...)
	seen := NewSet(next)
	judged := make(map[string]bool, len(answered))
	for _, p := range answered {
		judged[p] = true
	}
	for _, a := range t.previous {
		if !judged[a.Printer] && !seen.Has(a.Message) {
			next = append(next, a)
			seen[a.Message] = struct{}{}
		}
	}

	return Round{Fresh: dedupe(fresh), next: next}
}

// Commit makes the round's alerts the previous ones and persists them.
// Undelivered alerts are left out so the next round announces them again.
// The in-memory state advances even when saving fails.
func (t *Tracker) Commit(r Round, undelivered []Alert) error {
	skip := NewSet(undelivered)
	next := make([]Alert, 0, len(r.next))
	for _, a := range r.next {
		if !skip.Has(a.Message) {
			next = append(next, a)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.previous = next
	if err := t.store.Save(next); err != nil {
		return fmt.Errorf("save alert state: %w", err)
	}
	return nil
}

func dedupe(alerts []Alert) []Alert {
	seen := make(Set, len(alerts))
	var out []Alert
	for _, a := range alerts {
		if seen.Has(a.Message) {
			continue
		}
		seen[a.Message] = struct{}{}
		out = append(out, a)
	}
	return out
}
