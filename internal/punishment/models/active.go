package models

import "slices"

// ActiveSet is an immutable snapshot of the active punishments of one
// identity at one observation instant. A refresh replaces it wholesale.
type ActiveSet struct {
	records []Record
}

// NewActiveSet copies records so later changes to the slice do not leak in.
func NewActiveSet(records []Record) ActiveSet {
	return ActiveSet{records: slices.Clone(records)}
}

// Get returns the first record of type t.
func (a ActiveSet) Get(t Type) (Record, bool) {
	for _, r := range a.records {
		if r.Type == t {
			return r, true
		}
	}
	return Record{}, false
}

// Has reports whether any record has type t.
func (a ActiveSet) Has(t Type) bool {
	_, ok := a.Get(t)
	return ok
}

// All returns a copy of the records.
func (a ActiveSet) All() []Record {
	return slices.Clone(a.records)
}

func (a ActiveSet) Len() int { return len(a.records) }

// IDs returns the set of internal ids in the snapshot.
func (a ActiveSet) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(a.records))
	for _, r := range a.records {
		ids[r.InternalID] = struct{}{}
	}
	return ids
}
