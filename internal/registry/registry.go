// Package registry indexes observed effects by id and by parent/child relation.
//
// It is an append-only arena: records are never removed, child lists only grow
// and keep first-observation order. The registry is not safe for concurrent
// use; the runtime serializes access to it.
package registry

import "github.com/aretw0/sagalens/pkg/domain"

// Registry holds every record observed by one monitor.
type Registry struct {
	records  map[domain.EffectID]*domain.Record
	children map[domain.EffectID][]domain.EffectID
	roots    []domain.EffectID
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		records:  make(map[domain.EffectID]*domain.Record),
		children: make(map[domain.EffectID][]domain.EffectID),
	}
}

// RegisterRoot stores a root record and appends it to the root list.
// It returns false if the id was already registered.
func (r *Registry) RegisterRoot(rec *domain.Record) bool {
	if _, exists := r.records[rec.ID]; exists {
		return false
	}
	rec.Root = true
	r.roots = append(r.roots, rec.ID)
	r.insert(rec)
	return true
}

// Register stores a record and links it under its parent, if any.
// It returns false if the id was already registered; the first observation wins.
func (r *Registry) Register(rec *domain.Record) bool {
	if _, exists := r.records[rec.ID]; exists {
		return false
	}
	r.insert(rec)
	return true
}

func (r *Registry) insert(rec *domain.Record) {
	r.records[rec.ID] = rec
	if rec.HasParent() {
		r.children[rec.ParentID] = append(r.children[rec.ParentID], rec.ID)
	}
}

// Get returns the record for id.
func (r *Registry) Get(id domain.EffectID) (*domain.Record, bool) {
	rec, ok := r.records[id]
	return rec, ok
}

// ChildrenOf returns the ids of the direct children of parentID in
// first-observation order. The returned slice must not be modified.
func (r *Registry) ChildrenOf(parentID domain.EffectID) []domain.EffectID {
	return r.children[parentID]
}

// Roots returns the root ids in registration order.
func (r *Registry) Roots() []domain.EffectID {
	return r.roots
}

// Len returns the number of records.
func (r *Registry) Len() int {
	return len(r.records)
}

// Each calls fn for every record. Iteration order is unspecified.
func (r *Registry) Each(fn func(*domain.Record)) {
	for _, rec := range r.records {
		fn(rec)
	}
}
