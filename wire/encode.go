// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"bytes"
	"encoding/binary"

	"github.com/luxfi/aura/evidence"
	"github.com/luxfi/aura/id"
)

func putBytes(buf *bytes.Buffer, b []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(b)))
	buf.Write(length[:])
	buf.Write(b)
}

// canonicalizeDelta appends a deterministic encoding of delta to buf: the
// proposal map in lexicographic (rid, pHash) order with witnesses sorted
// within each key, the equivocation records in the order they were
// appended (append-only so this is already deterministic per-peer, and
// merge is commutative regardless of order), and the commit cell if set.
func canonicalizeDelta(buf *bytes.Buffer, delta evidence.Delta) {
	keys := delta.Shares.SortedKeys()
	binary.Write(buf, binary.BigEndian, uint32(len(keys)))
	for _, k := range keys {
		buf.Write(k.Rid[:])
		buf.Write(k.PHash[:])
		witnesses := delta.Shares[k]
		wids := make([]id.WitnessId, 0, len(witnesses))
		for w := range witnesses {
			wids = append(wids, w)
		}
		sortWitnessIds(wids)
		binary.Write(buf, binary.BigEndian, uint32(len(wids)))
		for _, w := range wids {
			putBytes(buf, w.Bytes())
			putBytes(buf, witnesses[w])
		}
	}

	binary.Write(buf, binary.BigEndian, uint32(len(delta.Equivocations)))
	for _, eq := range delta.Equivocations {
		putBytes(buf, eq.Witness.Bytes())
		buf.Write(eq.PHash[:])
		buf.Write(eq.RidA[:])
		putBytes(buf, eq.ShareA)
		buf.Write(eq.RidB[:])
		putBytes(buf, eq.ShareB)
	}

	if delta.Commit != nil {
		buf.WriteByte(1)
		buf.Write(delta.Commit.Rid[:])
		buf.Write(delta.Commit.PHash[:])
		putBytes(buf, delta.Commit.Sig)
		atts := append([]id.WitnessId(nil), delta.Commit.Attesters...)
		sortWitnessIds(atts)
		binary.Write(buf, binary.BigEndian, uint32(len(atts)))
		for _, w := range atts {
			putBytes(buf, w.Bytes())
		}
	} else {
		buf.WriteByte(0)
	}
}

func sortWitnessIds(ws []id.WitnessId) {
	for i := 1; i < len(ws); i++ {
		for j := i; j > 0 && bytesLess(ws[j].Bytes(), ws[j-1].Bytes()); j-- {
			ws[j], ws[j-1] = ws[j-1], ws[j]
		}
	}
}

func bytesLess(a, b []byte) bool {
	return bytes.Compare(a, b) < 0
}

// Canonicalize produces the deterministic byte encoding of msg used to
// compute a stable H(message) across peers, as required by spec §6.1 for
// equivocation proofs. Each variant is tagged with its Kind so encodings
// of different message types never collide.
func Canonicalize(kind Kind, cid id.ConsensusId, fields func(*bytes.Buffer), delta evidence.Delta) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(kind))
	buf.Write(cid[:])
	fields(&buf)
	canonicalizeDelta(&buf, delta)
	return buf.Bytes()
}

// Hash returns the domain-separated hash of a message's canonical
// encoding.
func Hash(encoded []byte) id.Hash32 {
	return id.HashCommit(encoded)
}

// Canonical returns WitnessShareMsg's canonical encoding.
func (m WitnessShareMsg) Canonical() []byte {
	return Canonicalize(KindWitnessShare, m.Cid, func(buf *bytes.Buffer) {
		buf.Write(m.Rid[:])
		buf.Write(m.PHash[:])
		putBytes(buf, m.Share)
	}, m.Delta)
}

// Canonical returns Execute's canonical encoding.
func (m Execute) Canonical() []byte {
	return Canonicalize(KindExecute, m.Cid, func(buf *bytes.Buffer) {
		putBytes(buf, m.Op)
		buf.Write(m.PHash[:])
	}, m.Delta)
}

// Canonical returns Commit's canonical encoding.
func (m Commit) Canonical() []byte {
	return Canonicalize(KindCommit, m.Cid, func(buf *bytes.Buffer) {
		buf.Write(m.Rid[:])
		putBytes(buf, m.Sig)
		atts := append([]id.WitnessId(nil), m.Attesters...)
		sortWitnessIds(atts)
		binary.Write(buf, binary.BigEndian, uint32(len(atts)))
		for _, w := range atts {
			putBytes(buf, w.Bytes())
		}
	}, m.Delta)
}

// Canonical returns StateMismatch's canonical encoding.
func (m StateMismatch) Canonical() []byte {
	return Canonicalize(KindStateMismatch, m.Cid, func(buf *bytes.Buffer) {
		buf.Write(m.Expected[:])
		buf.Write(m.Actual[:])
	}, m.Delta)
}

func canonicalizeProposals(buf *bytes.Buffer, proposals evidence.ProposalMap) {
	keys := proposals.SortedKeys()
	binary.Write(buf, binary.BigEndian, uint32(len(keys)))
	for _, k := range keys {
		buf.Write(k.Rid[:])
		buf.Write(k.PHash[:])
		witnesses := proposals[k]
		wids := make([]id.WitnessId, 0, len(witnesses))
		for w := range witnesses {
			wids = append(wids, w)
		}
		sortWitnessIds(wids)
		binary.Write(buf, binary.BigEndian, uint32(len(wids)))
		for _, w := range wids {
			putBytes(buf, w.Bytes())
			putBytes(buf, witnesses[w])
		}
	}
}

// Canonical returns Conflict's canonical encoding.
func (m Conflict) Canonical() []byte {
	return Canonicalize(KindConflict, m.Cid, func(buf *bytes.Buffer) {
		canonicalizeProposals(buf, m.Proposals)
	}, m.Delta)
}

// Canonical returns AggregateShare's canonical encoding.
func (m AggregateShare) Canonical() []byte {
	return Canonicalize(KindAggregateShare, m.Cid, func(buf *bytes.Buffer) {
		canonicalizeProposals(buf, m.Proposals)
	}, m.Delta)
}

// Canonical returns ThresholdComplete's canonical encoding.
func (m ThresholdComplete) Canonical() []byte {
	return Canonicalize(KindThresholdComplete, m.Cid, func(buf *bytes.Buffer) {
		buf.Write(m.Rid[:])
		putBytes(buf, m.Sig)
		atts := append([]id.WitnessId(nil), m.Attesters...)
		sortWitnessIds(atts)
		binary.Write(buf, binary.BigEndian, uint32(len(atts)))
		for _, w := range atts {
			putBytes(buf, w.Bytes())
		}
	}, m.Delta)
}
