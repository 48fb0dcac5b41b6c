// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package id defines the identifier and hash primitives shared across the
// consensus core: consensus instance ids, witness ids, and the
// domain-separated hashes that bind a result to its pre-state.
package id

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/luxfi/ids"
)

// Hash32 is a 32-byte cryptographic hash output, domain-separated by caller.
type Hash32 [32]byte

// String returns the hex encoding of the hash.
func (h Hash32) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash32) IsZero() bool {
	return h == Hash32{}
}

// Less reports whether h sorts before other, byte for byte. Used for the
// lexicographic tie-break between simultaneously-threshold (rid, pHash)
// keys in the share aggregator.
func (h Hash32) Less(other Hash32) bool {
	for i := range h {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// ConsensusId uniquely identifies one single-shot agreement attempt.
type ConsensusId = Hash32

// WitnessId is the stable identifier of a participating signer within an
// instance. It reuses luxfi/ids.NodeID so that wire encodings and witness
// maps interoperate with the rest of the stack this core is embedded in.
type WitnessId = ids.NodeID

// ResultId is H("aura-result" || Op || prestate): the deterministic
// outcome of applying an operation to a pre-state.
type ResultId = Hash32

// PrestateHash is H("aura-prestate" || c_auth_1 || ... || c_auth_n || c_context):
// commits the reduced commitments of every participating authority plus
// the context journal.
type PrestateHash = Hash32

// ShareValue is an opaque signature share bound to (cid, rid, pHash, witness).
type ShareValue []byte

// AggregatedSignature is the combination of >= t non-equivocating shares.
type AggregatedSignature []byte

const (
	domainPrestate = "aura-prestate"
	domainResult   = "aura-result"
	domainCommit   = "aura-commit"
)

// HashPrestate computes pHash from the participating authorities'
// commitments (in a caller-supplied, already-deterministic order) and the
// context journal commitment.
func HashPrestate(commitments [][]byte, context []byte) PrestateHash {
	h := sha256.New()
	h.Write([]byte(domainPrestate))
	for _, c := range commitments {
		h.Write(c)
	}
	h.Write(context)
	var out Hash32
	copy(out[:], h.Sum(nil))
	return out
}

// HashResult computes rid from the operation bytes and the pre-state they
// were applied to.
func HashResult(op []byte, prestate []byte) ResultId {
	h := sha256.New()
	h.Write([]byte(domainResult))
	h.Write(op)
	h.Write(prestate)
	var out Hash32
	copy(out[:], h.Sum(nil))
	return out
}

// HashCommit domain-separates hashes taken over a commit fact's wire
// encoding, used when a deterministic H(message) is required for
// equivocation proofs (spec §6.1).
func HashCommit(encoded []byte) Hash32 {
	h := sha256.New()
	h.Write([]byte(domainCommit))
	h.Write(encoded)
	var out Hash32
	copy(out[:], h.Sum(nil))
	return out
}

// NewConsensusId derives a ConsensusId deterministically from a proposer
// id and a caller-supplied nonce (e.g. a journal sequence number), so that
// two peers proposing independently do not collide.
func NewConsensusId(proposer WitnessId, nonce []byte) ConsensusId {
	h := sha256.New()
	h.Write([]byte("aura-cid"))
	h.Write(proposer.Bytes())
	h.Write(nonce)
	var out Hash32
	copy(out[:], h.Sum(nil))
	return out
}
