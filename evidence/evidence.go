// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package evidence implements the per-instance monotonic CRDT described in
// spec §3/§4.1: a grow-only set of witness shares, a grow-only set of
// equivocation records, and an at-most-one commit cell with
// first-writer-wins semantics under the "verifies successfully"
// predicate. It is grounded on the bucket-by-key accumulation style of
// luxfi/consensus's internal/quasar aggregator and the certificate
// bookkeeping of its ringtail package, generalized from a single round of
// BLS/RT certification to the full evidence-merge contract the spec
// requires.
package evidence

import (
	"sort"

	"golang.org/x/exp/maps"

	"github.com/luxfi/aura/id"
)

// ProposalKey identifies one candidate outcome within an instance: the
// result id and the pre-state hash it was computed against.
type ProposalKey struct {
	Rid   id.ResultId
	PHash id.PrestateHash
}

// Less implements the lexicographic tie-break of spec §4.2: compare Rid
// first, then PHash.
func (k ProposalKey) Less(other ProposalKey) bool {
	if k.Rid != other.Rid {
		return k.Rid.Less(other.Rid)
	}
	return k.PHash.Less(other.PHash)
}

// WitnessShare is one witness's contribution: (cid, witness, rid, pHash,
// share), spec §3.
type WitnessShare struct {
	Witness id.WitnessId
	Key     ProposalKey
	Share   id.ShareValue
}

// CommitFact is the immutable record that (cid, rid) has been
// threshold-signed (spec §3). Once set for a cid it never changes
// (monotone commit rule).
type CommitFact struct {
	Cid       id.ConsensusId
	Rid       id.ResultId
	PHash     id.PrestateHash
	Sig       id.AggregatedSignature
	Attesters []id.WitnessId
}

// EquivocationRecord is self-proving evidence that a witness signed two
// distinct results under the same pre-state (spec §3).
type EquivocationRecord struct {
	Witness id.WitnessId
	PHash   id.PrestateHash
	RidA    id.ResultId
	ShareA  id.ShareValue
	RidB    id.ResultId
	ShareB  id.ShareValue
}

// ProposalMap is the set-union semilattice keyed by (rid, pHash): for each
// key, the set of (witness, share) pairs contributed so far, with witness
// unique within each key's set (spec §3).
type ProposalMap map[ProposalKey]map[id.WitnessId]id.ShareValue

func newProposalMap() ProposalMap {
	return make(ProposalMap)
}

// clone returns a deep copy, used when extracting a delta snapshot so the
// caller cannot mutate the store's internal state.
func (m ProposalMap) clone() ProposalMap {
	out := make(ProposalMap, len(m))
	for k, witnesses := range m {
		wm := make(map[id.WitnessId]id.ShareValue, len(witnesses))
		for w, s := range witnesses {
			wm[w] = s
		}
		out[k] = wm
	}
	return out
}

// merge unions other into m in place. Set-union per key is commutative
// and idempotent: re-observing the same (key, witness, share) triple is a
// no-op.
func (m ProposalMap) merge(other ProposalMap) {
	for k, witnesses := range other {
		wm, ok := m[k]
		if !ok {
			wm = make(map[id.WitnessId]id.ShareValue, len(witnesses))
			m[k] = wm
		}
		for w, s := range witnesses {
			if _, exists := wm[w]; !exists {
				wm[w] = s
			}
		}
	}
}

// SortedKeys returns the map's keys in deterministic (lexicographic)
// order, for the tie-break of spec §4.2 and for deterministic iteration
// anywhere map order would otherwise vary.
func (m ProposalMap) SortedKeys() []ProposalKey {
	keys := maps.Keys(m)
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Delta is the CRDT payload piggybacked on every protocol message for a
// cid (spec §3: EvidenceDelta). Merge is set-union on Shares and
// Equivocations and first-writer-wins on Commit under the monotone rule.
type Delta struct {
	Shares        ProposalMap
	Equivocations []EquivocationRecord
	Commit        *CommitFact
}

// NewDelta returns an empty Delta ready for accumulation.
func NewDelta() Delta {
	return Delta{Shares: newProposalMap()}
}
