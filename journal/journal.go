// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package journal defines the narrow contract the consensus core
// consumes from the CRDT journal (fact store, reducer, snapshot/GC),
// explicitly out of scope per spec §1 and specified only by the
// interface of spec §6.2.
package journal

import (
	"context"

	"github.com/luxfi/aura/evidence"
	"github.com/luxfi/aura/id"
)

// InsertOutcome reports whether insert_commit_fact actually admitted the
// fact or found an equal-or-earlier one already present.
type InsertOutcome struct {
	Superseded bool
}

// Journal is the external collaborator of spec §6.2.
type Journal interface {
	// ReadPrestate returns the current reduced state relevant to cid and
	// its hash, computed deterministically across peers that have merged
	// the same facts.
	ReadPrestate(ctx context.Context, cid id.ConsensusId) ([]byte, id.Hash32, error)

	// InsertCommitFact is idempotent: Superseded indicates an equal or
	// earlier fact already existed.
	InsertCommitFact(ctx context.Context, cid id.ConsensusId, fact evidence.CommitFact) (InsertOutcome, error)

	// SubscribeInstance delivers incoming deltas from other peers
	// observing the same cid. The returned channel is closed when ctx is
	// done.
	SubscribeInstance(ctx context.Context, cid id.ConsensusId) (<-chan evidence.Delta, error)
}
