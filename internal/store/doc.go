// Package store implements the authoritative, versioned in-memory store
// for collaborative polygon ("area") records, providing optimistic
// concurrency control, per-record edit history, and snapshot-consistent
// spatial range queries.
//
// # Overview
//
// The store is the single source of truth for area records in a running
// process. Every accepted write recomputes the record's geodesic area
// from its ring, bumps its version by exactly one, and appends a full
// snapshot of the pre-write record to its history, so that for any
// record len(History) == Version-1 always holds.
//
// # Concurrency Model
//
// Writers coordinate through two levels of locking:
//
//	┌─────────────────────────────────────┐
//	│             AreaStore               │
//	├─────────────────────────────────────┤
//	│  mu: RWMutex guarding the id map    │
//	│  entries: map[id] → *entry          │
//	├─────────────────────────────────────┤
//	│  entry.mu: Mutex per record         │
//	│  compare-version → snapshot →       │
//	│  commit happens under entry.mu      │
//	└─────────────────────────────────────┘
//
//   - Create inserts under the store write lock; ids are uuids, so
//     concurrent creates never collide.
//   - Update locates the entry under the store read lock, then performs
//     the whole compare-version-and-commit sequence under that entry's
//     own mutex. Updates to different ids never block each other.
//   - Queries take the store read lock only long enough to snapshot the
//     entry set, then copy each record under its entry mutex. A query
//     therefore sees each record either fully before or fully after any
//     concurrent update, never a mix of fields.
//
// All records returned to callers are deep copies; mutating a returned
// record never affects stored state.
//
// # Conflict Handling
//
// Updates carry the version the client last saw. A mismatch fails with
// VersionConflictError and performs no mutation: the client is expected
// to re-fetch and reapply. The store never merges concurrent edits and
// never retries on the caller's behalf, since a blind retry could
// silently clobber a peer's committed edit.
//
// # Durability
//
// None. State is process-local and lost on restart by design; if
// durability is ever required, the commit step inside the entry critical
// section is the extension point for a write-ahead log.
package store
