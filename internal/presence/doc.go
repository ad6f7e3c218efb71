// Package presence tracks the set of live collaborator connections and
// fans change notifications out to all of them.
//
// # Overview
//
// The broadcaster is an opaque relay: it never parses, validates, or
// stores the payloads it forwards, and it knows nothing about area
// records. Its only state is the connection set and the identity each
// connection authenticated as. Whenever membership changes (a join, a
// leave, or a dead connection discovered mid-broadcast) it emits a
// roster message listing the distinct identities currently online:
//
//	{"type": "users", "users": ["alice", "bob"]}
//
// An identity may hold several connections at once; it stays on the
// roster until its last connection goes away.
//
// # Failure Semantics
//
// Delivery is best-effort. A send failure on one connection never stops
// delivery to the others and is never surfaced to the sender: the
// failing connection is closed, dropped from the set, and announced via
// an updated roster broadcast. Each broadcast pass iterates a snapshot
// of the connection set, so connections closing mid-broadcast cannot
// corrupt iteration.
//
// Authentication happens at the transport boundary before Join is
// called; a connection that fails the token lookup is closed with a
// policy-violation signal and never registers here.
package presence
