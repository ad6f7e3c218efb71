package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oedima/gis-colab/internal/geo"
)

// ErrNotFound is returned when an update references an id that doesn't exist
var ErrNotFound = errors.New("area not found")

// VersionConflictError is returned when an update's expected version does
// not match the stored record. The caller should re-fetch the record at
// Current and reapply its edit; the store never merges or retries.
type VersionConflictError struct {
	ID       string // The record the update targeted
	Expected int    // Version the client last saw
	Current  int    // Version actually stored
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on area %s: expected %d, current %d", e.ID, e.Expected, e.Current)
}

// AreaRecord is one versioned polygon record. Field names on the wire
// match the client protocol (coordinates, area_sq_km, updated_at, user).
type AreaRecord struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Ring      geo.Ring     `json:"coordinates"`
	AreaSqKm  float64      `json:"area_sq_km"`
	Version   int          `json:"version"`
	History   []AreaRecord `json:"history"`
	Owner     string       `json:"user"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// clone returns a deep copy of the record. Historical snapshots carry no
// nested history of their own, so one level of ring copying suffices.
func (r *AreaRecord) clone() AreaRecord {
	out := *r
	out.Ring = r.Ring.Clone()
	if r.History != nil {
		out.History = make([]AreaRecord, len(r.History))
		for i := range r.History {
			out.History[i] = r.History[i]
			out.History[i].Ring = r.History[i].Ring.Clone()
		}
	}
	return out
}

// snapshot returns a copy of the record suitable for appending to
// history: the snapshot's own History is elided so history doesn't nest
func (r *AreaRecord) snapshot() AreaRecord {
	out := *r
	out.Ring = r.Ring.Clone()
	out.History = nil
	return out
}

// entry pairs a record with the mutex serializing its mutations
type entry struct {
	mu  sync.Mutex
	rec AreaRecord
}

// AreaStore holds the authoritative set of area records. Safe for
// concurrent use; see the package documentation for the locking model.
type AreaStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewAreaStore creates an empty store
func NewAreaStore() *AreaStore {
	return &AreaStore{entries: make(map[string]*entry)}
}

// Create validates the ring, computes its geodesic area, and stores a
// fresh record at version 1 with empty history owned by actor. Returns a
// deep copy of the stored record. No mutation happens on a validation
// failure.
func (s *AreaStore) Create(name string, ring geo.Ring, actor string) (*AreaRecord, error) {
	if err := geo.ValidateRing(ring); err != nil {
		return nil, err
	}

	rec := AreaRecord{
		ID:        uuid.NewString(),
		Name:      name,
		Ring:      ring.Clone(),
		AreaSqKm:  geo.Area(ring),
		Version:   1,
		History:   []AreaRecord{},
		Owner:     actor,
		UpdatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.entries[rec.ID] = &entry{rec: rec}
	s.mu.Unlock()

	out := rec.clone()
	return &out, nil
}

// Update applies an optimistically-versioned edit to the record with the
// given id. The ring is validated before any lock is taken; the
// compare-version, history append, and commit then run as one atomic
// unit under the record's own mutex, so updates targeting different ids
// proceed in parallel. Fails with ErrNotFound for unknown ids and
// *VersionConflictError when expectedVersion doesn't match, in both
// cases leaving the store untouched.
func (s *AreaStore) Update(id string, expectedVersion int, name string, ring geo.Ring, actor string) (*AreaRecord, error) {
	if err := geo.ValidateRing(ring); err != nil {
		return nil, err
	}

	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec.Version != expectedVersion {
		return nil, &VersionConflictError{ID: id, Expected: expectedVersion, Current: e.rec.Version}
	}

	e.rec.History = append(e.rec.History, e.rec.snapshot())
	e.rec.Name = name
	e.rec.Ring = ring.Clone()
	e.rec.AreaSqKm = geo.Area(ring)
	e.rec.Version++
	e.rec.Owner = actor
	e.rec.UpdatedAt = time.Now().UTC()

	out := e.rec.clone()
	return &out, nil
}

// Get returns a deep copy of the record with the given id, or ErrNotFound
func (s *AreaStore) Get(id string) (*AreaRecord, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	out := e.rec.clone()
	e.mu.Unlock()
	return &out, nil
}

// QueryByBBox returns a copy of every record whose ring intersects the
// rectangle. Order is not significant. Each record is copied under its
// entry mutex, so the result never mixes pre- and mid-update fields of
// the same record, and the scan never blocks concurrent writers for
// longer than one record copy.
func (s *AreaStore) QueryByBBox(b geo.BBox) []AreaRecord {
	s.mu.RLock()
	snapshot := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		snapshot = append(snapshot, e)
	}
	s.mu.RUnlock()

	results := make([]AreaRecord, 0)
	for _, e := range snapshot {
		e.mu.Lock()
		rec := e.rec.clone()
		e.mu.Unlock()
		if geo.IntersectsBBox(rec.Ring, b) {
			results = append(results, rec)
		}
	}
	return results
}

// Len returns the number of stored records
func (s *AreaStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
