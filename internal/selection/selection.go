// Package selection tracks which landmark, if any, the walker picked as a detour.
package selection

import "sync"

// Capacity is the maximum number of landmarks selected at once.
const Capacity = 1

// Snapshot is an immutable view of the selection.
type Snapshot struct {
	Selected []int64 `json:"selectedPOIs"`
}

// Has reports whether id is selected.
func (s Snapshot) Has(id int64) bool {
	for _, v := range s.Selected {
		if v == id {
			return true
		}
	}
	return false
}

// Empty reports whether nothing is selected.
func (s Snapshot) Empty() bool {
	return len(s.Selected) == 0
}

// Listener is notified after every transition.
type Listener func(Snapshot)

// Machine is the None / Selected(id) state machine.
// It is safe for concurrent use; listeners run outside the lock, in the
// goroutine that performed the transition.
type Machine struct {
	mu        sync.Mutex
	selected  *int64
	listeners []Listener
}

// NewMachine creates a machine in the None state.
func NewMachine() *Machine {
	return &Machine{}
}

// Subscribe registers a listener for future transitions.
func (m *Machine) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Toggle selects id, deselects it if it is already selected, or replaces a
// different selection.
func (m *Machine) Toggle(id int64) Snapshot {
	m.mu.Lock()
	if m.selected != nil && *m.selected == id {
		m.selected = nil
	} else {
		v := id
		m.selected = &v
	}
	snap := m.snapshotLocked()
	listeners := m.listenersLocked()
	m.mu.Unlock()

	notify(listeners, snap)
	return snap
}

// Select selects id unless it is already selected. It never deselects.
func (m *Machine) Select(id int64) Snapshot {
	m.mu.Lock()
	if m.selected != nil && *m.selected == id {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap
	}
	v := id
	m.selected = &v
	snap := m.snapshotLocked()
	listeners := m.listenersLocked()
	m.mu.Unlock()

	notify(listeners, snap)
	return snap
}

// Reset returns to the None state.
func (m *Machine) Reset() Snapshot {
	m.mu.Lock()
	m.selected = nil
	snap := m.snapshotLocked()
	listeners := m.listenersLocked()
	m.mu.Unlock()

	notify(listeners, snap)
	return snap
}

// Snapshot returns the current selection.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	if m.selected == nil {
		return Snapshot{Selected: []int64{}}
	}
	return Snapshot{Selected: []int64{*m.selected}}
}

func (m *Machine) listenersLocked() []Listener {
	out := make([]Listener, len(m.listeners))
	copy(out, m.listeners)
	return out
}

func notify(listeners []Listener, snap Snapshot) {
	for _, l := range listeners {
		l(snap)
	}
}
