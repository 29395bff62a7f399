package service

import (
	"sync"

	"github.com/google/uuid"

	"warden/internal/punishment/models"
)

// snapshotCache maps identities to their last observed active set. Entries
// are replaced wholesale, never edited.
type snapshotCache struct {
	m sync.Map
}

func (c *snapshotCache) Load(id uuid.UUID) (models.ActiveSet, bool) {
	v, ok := c.m.Load(id)
	if !ok {
		return models.ActiveSet{}, false
	}
	return v.(models.ActiveSet), true
}

func (c *snapshotCache) Store(id uuid.UUID, set models.ActiveSet) {
	c.m.Store(id, set)
}

// Swap stores set and returns the entry it replaced.
func (c *snapshotCache) Swap(id uuid.UUID, set models.ActiveSet) (models.ActiveSet, bool) {
	prev, loaded := c.m.Swap(id, set)
	if !loaded {
		return models.ActiveSet{}, false
	}
	return prev.(models.ActiveSet), true
}

func (c *snapshotCache) Delete(id uuid.UUID) {
	c.m.Delete(id)
}

// Retain drops every entry keep rejects and reports how many went.
func (c *snapshotCache) Retain(keep func(uuid.UUID) bool) int {
	dropped := 0
	c.m.Range(func(k, _ any) bool {
		if id := k.(uuid.UUID); !keep(id) {
			c.m.Delete(id)
			dropped++
		}
		return true
	})
	return dropped
}

func (c *snapshotCache) Snapshot() map[uuid.UUID]models.ActiveSet {
	out := make(map[uuid.UUID]models.ActiveSet)
	c.m.Range(func(k, v any) bool {
		out[k.(uuid.UUID)] = v.(models.ActiveSet)
		return true
	})
	return out
}

// trackedRegistry maps connected identities to the address they joined from.
type trackedRegistry struct {
	m sync.Map
}

func (r *trackedRegistry) Load(id uuid.UUID) (string, bool) {
	v, ok := r.m.Load(id)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (r *trackedRegistry) Store(id uuid.UUID, ip string) {
	r.m.Store(id, ip)
}

func (r *trackedRegistry) Delete(id uuid.UUID) {
	r.m.Delete(id)
}

// IDs returns the identities tracked at the moment of the call.
func (r *trackedRegistry) IDs() []uuid.UUID {
	var ids []uuid.UUID
	r.m.Range(func(k, _ any) bool {
		ids = append(ids, k.(uuid.UUID))
		return true
	})
	return ids
}

func (r *trackedRegistry) Len() int {
	n := 0
	r.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
