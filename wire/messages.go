// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wire defines the protocol messages of spec §6.1 and their
// deterministic encoding. All messages carry a cid and an
// evidence.Delta. Encoding is opaque to the protocol's semantics, but the
// on-wire representation must be deterministic so that H(message) is
// stable across peers for equivocation proofs. Grounded on
// luxfi/consensus's codec/codec.go JSON envelope for general transport,
// and on ringtail/certificate.go's manual bytes.Buffer/encoding/binary
// Serialize for the canonical, hash-stable form.
package wire

import (
	"github.com/luxfi/aura/evidence"
	"github.com/luxfi/aura/id"
)

// Kind tags which of the seven message variants a decoded envelope holds.
type Kind uint8

const (
	KindExecute Kind = iota + 1
	KindWitnessShare
	KindStateMismatch
	KindCommit
	KindConflict
	KindAggregateShare
	KindThresholdComplete
)

func (k Kind) String() string {
	switch k {
	case KindExecute:
		return "Execute"
	case KindWitnessShare:
		return "WitnessShare"
	case KindStateMismatch:
		return "StateMismatch"
	case KindCommit:
		return "Commit"
	case KindConflict:
		return "Conflict"
	case KindAggregateShare:
		return "AggregateShare"
	case KindThresholdComplete:
		return "ThresholdComplete"
	default:
		return "Unknown"
	}
}

// Execute is sent by the initiator to every witness (spec §6.1).
type Execute struct {
	Cid   id.ConsensusId
	Op    []byte
	PHash id.PrestateHash
	Delta evidence.Delta
}

// WitnessShareMsg is a witness's reply to Execute, carrying its produced
// share (spec §6.1 WitnessShare). Named *Msg to avoid colliding with
// evidence.WitnessShare, the stored record the message carries the
// payload for.
type WitnessShareMsg struct {
	Cid   id.ConsensusId
	Rid   id.ResultId
	PHash id.PrestateHash
	Share id.ShareValue
	Delta evidence.Delta
}

// StateMismatch is a witness's reply to Execute when its local pre-state
// hash does not match the proposed one (spec §6.1).
type StateMismatch struct {
	Cid      id.ConsensusId
	Expected id.PrestateHash
	Actual   id.PrestateHash
	Delta    evidence.Delta
}

// Commit is sent by the initiator once it has combined and verified an
// aggregated signature (spec §6.1).
type Commit struct {
	Cid       id.ConsensusId
	Rid       id.ResultId
	Sig       id.AggregatedSignature
	Attesters []id.WitnessId
	Delta     evidence.Delta
}

// Conflict is sent by the initiator when it observes conflicting rids,
// handing collection over to the witnesses' fallback (spec §6.1).
type Conflict struct {
	Cid       id.ConsensusId
	Proposals evidence.ProposalMap
	Delta     evidence.Delta
}

// AggregateShare is a fallback-gossip tick's payload: the sender's full
// current proposal map for cid (spec §6.1).
type AggregateShare struct {
	Cid       id.ConsensusId
	Proposals evidence.ProposalMap
	Delta     evidence.Delta
}

// ThresholdComplete is broadcast by the first fallback witness to
// assemble a valid threshold (spec §6.1).
type ThresholdComplete struct {
	Cid       id.ConsensusId
	Rid       id.ResultId
	Sig       id.AggregatedSignature
	Attesters []id.WitnessId
	Delta     evidence.Delta
}
