// Package registry tracks the set of token assets a vault enumerates.
// Registration affects enumeration only, never transfer permission.
package registry

import "custody-vault/internal/domain"

// Registry holds the supported token set plus its enumeration sequence.
// Removal swaps the last element into the vacated slot and truncates, so
// enumeration order is not preserved across removals. That is a deliberate
// trade: O(1) removal over stable ordering.
type Registry struct {
	supported map[domain.TokenID]struct{}
	order     []domain.TokenID
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		supported: make(map[domain.TokenID]struct{}),
	}
}

// FromList rebuilds a registry from a persisted enumeration sequence.
// Duplicates and zero ids in the input are dropped.
func FromList(tokens []domain.TokenID) *Registry {
	r := New()
	for _, id := range tokens {
		if id.IsZero() {
			continue
		}
		r.Add(id)
	}
	return r
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id domain.TokenID) bool {
	_, ok := r.supported[id]
	return ok
}

// Add registers id. Reports whether it was newly inserted.
func (r *Registry) Add(id domain.TokenID) bool {
	if _, ok := r.supported[id]; ok {
		return false
	}
	r.supported[id] = struct{}{}
	r.order = append(r.order, id)
	return true
}

// Remove deregisters id using swap-with-last-and-truncate.
// Reports whether id was present.
func (r *Registry) Remove(id domain.TokenID) bool {
	if _, ok := r.supported[id]; !ok {
		return false
	}
	delete(r.supported, id)

	for i, t := range r.order {
		if t == id {
			last := len(r.order) - 1
			r.order[i] = r.order[last]
			r.order = r.order[:last]
			break
		}
	}
	return true
}

// List returns a copy of the enumeration sequence.
func (r *Registry) List() []domain.TokenID {
	out := make([]domain.TokenID, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tokens.
func (r *Registry) Len() int {
	return len(r.order)
}
