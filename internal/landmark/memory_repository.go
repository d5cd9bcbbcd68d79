package landmark

import (
	"sync"
)

// InMemoryRepository holds the current set of candidate landmarks.
// Replacing the set keeps the backend order.
type InMemoryRepository struct {
	mu    sync.RWMutex
	order []int64
	items map[int64]Landmark
}

// NewInMemoryRepository creates an empty landmark repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		items: make(map[int64]Landmark),
	}
}

// Replace swaps the whole candidate set.
func (r *InMemoryRepository) Replace(landmarks []Landmark) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = make([]int64, 0, len(landmarks))
	r.items = make(map[int64]Landmark, len(landmarks))
	for _, l := range landmarks {
		if _, dup := r.items[l.ID]; !dup {
			r.order = append(r.order, l.ID)
		}
		r.items[l.ID] = l
	}
}

// Get retrieves a landmark by ID.
func (r *InMemoryRepository) Get(id int64) (Landmark, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.items[id]
	if !ok {
		return Landmark{}, ErrLandmarkNotFound
	}
	return l, nil
}

// List returns all landmarks in backend order.
func (r *InMemoryRepository) List() []Landmark {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Landmark, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out
}

// Resolve returns the landmarks for ids in the order of ids.
// Unknown ids are skipped.
func (r *InMemoryRepository) Resolve(ids []int64) []Landmark {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Landmark, 0, len(ids))
	for _, id := range ids {
		if l, ok := r.items[id]; ok {
			out = append(out, l)
		}
	}
	return out
}
