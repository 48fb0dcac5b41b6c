// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ringtail is the narrow crypto contract the consensus core
// consumes (spec §6.3): produce a threshold share bound to (cid, rid,
// pHash), verify a single share, combine a set of shares into an
// aggregated signature, and verify that aggregate against the group
// public key. The core treats the scheme itself as an external
// collaborator; this package defines the contract as a Go interface,
// mirroring luxfi/consensus's ringtail.ThresholdKey shape, plus a
// deterministic reference implementation used by tests and by any
// deployment that has not yet wired in a real lattice-based scheme.
package ringtail

import (
	"errors"

	"github.com/luxfi/aura/id"
)

var (
	// ErrVerificationFailed indicates a share or aggregate signature did
	// not verify (spec §7 VerificationFailed).
	ErrVerificationFailed = errors.New("ringtail: verification failed")

	// ErrInsufficientShares indicates fewer than the scheme's configured
	// threshold were supplied to Combine. Per spec §7 this is not an
	// error condition for the state machines (InsufficientShares just
	// drives the machine back into waiting), but Combine still needs to
	// report it to its caller.
	ErrInsufficientShares = errors.New("ringtail: insufficient shares")
)

// SigningMaterial is the witness-local key material needed to produce a
// share: its secret key share plus any scheme-specific context (e.g. a
// precomputed nonce for two-round schemes). Opaque to the consensus core.
type SigningMaterial []byte

// GroupPublicKey verifies aggregated signatures for the witness set as a
// whole.
type GroupPublicKey []byte

// WitnessPublicKey verifies one witness's individual share.
type WitnessPublicKey []byte

// Scheme is the threshold-signature contract consumed from spec §6.3.
type Scheme interface {
	// ProduceShare signs rid, binding the result to (cid, pHash) for
	// domain separation, using the witness's signing material.
	ProduceShare(cid id.ConsensusId, rid id.ResultId, pHash id.PrestateHash, material SigningMaterial) (id.ShareValue, error)

	// VerifyShare checks that share is witness's valid signature over
	// rid bound to (cid, pHash).
	VerifyShare(cid id.ConsensusId, rid id.ResultId, pHash id.PrestateHash, witness id.WitnessId, share id.ShareValue, pub WitnessPublicKey) bool

	// Combine aggregates shares into a single AggregatedSignature. The
	// scheme MUST itself enforce its own minimum share count if it has
	// one; the consensus core separately enforces the configured
	// threshold t before calling Combine (spec §4.2).
	Combine(shares []id.ShareValue) (id.AggregatedSignature, error)

	// CombineWithWitnesses is Combine plus the contributing witness for
	// each share. The aggregator uses this form exclusively (spec §4.2):
	// VerifyAggregate alone cannot recover which witnesses contributed to
	// a combination, but the CommitFact's Attesters list and any
	// retroactive equivocation purge both need that attribution.
	CombineWithWitnesses(pairs []Entry) (id.AggregatedSignature, error)

	// VerifyAggregate checks sig against rid and the group public key.
	VerifyAggregate(rid id.ResultId, sig id.AggregatedSignature, group GroupPublicKey) bool
}
