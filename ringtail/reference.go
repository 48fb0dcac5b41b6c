// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ringtail

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/luxfi/aura/id"
)

// ReferenceScheme is a deterministic, non-lattice stand-in for the real
// post-quantum threshold scheme a production deployment would wire in
// behind the Scheme interface. It exists so the consensus core's
// properties (Integrity, Agreement, equivocation exclusion) are
// mechanically testable without a real cryptographic library, matching
// luxfi/consensus's own internal/ringtail mock_ringtail.go test double,
// but made deterministic (no crypto/rand) so the round-trip/idempotence
// properties of spec §8 hold across repeated runs.
//
// A share is an HMAC-SHA256 tag over (cid, rid, pHash) keyed by the
// witness's signing material, with cid and pHash carried alongside the
// tag inside the opaque ShareValue so that VerifyAggregate (which per
// spec §6.3 only receives rid and the group public key) can still
// recheck each contributing share's binding without a side channel.
type ReferenceScheme struct{}

// NewReferenceScheme returns the deterministic test-double Scheme.
func NewReferenceScheme() *ReferenceScheme {
	return &ReferenceScheme{}
}

func shareMessage(cid id.ConsensusId, rid id.ResultId, pHash id.PrestateHash) []byte {
	var buf bytes.Buffer
	buf.WriteString("aura-share")
	buf.Write(cid[:])
	buf.Write(rid[:])
	buf.Write(pHash[:])
	return buf.Bytes()
}

// ProduceShare returns cid(32) || pHash(32) || hmac(32).
func (s *ReferenceScheme) ProduceShare(cid id.ConsensusId, rid id.ResultId, pHash id.PrestateHash, material SigningMaterial) (id.ShareValue, error) {
	mac := hmac.New(sha256.New, material)
	mac.Write(shareMessage(cid, rid, pHash))
	out := make([]byte, 0, 96)
	out = append(out, cid[:]...)
	out = append(out, pHash[:]...)
	out = append(out, mac.Sum(nil)...)
	return id.ShareValue(out), nil
}

func decodeShare(share id.ShareValue) (cid id.Hash32, pHash id.Hash32, mac []byte, ok bool) {
	if len(share) != 96 {
		return cid, pHash, nil, false
	}
	copy(cid[:], share[0:32])
	copy(pHash[:], share[32:64])
	mac = share[64:96]
	return cid, pHash, mac, true
}

func (s *ReferenceScheme) VerifyShare(cid id.ConsensusId, rid id.ResultId, pHash id.PrestateHash, witness id.WitnessId, share id.ShareValue, pub WitnessPublicKey) bool {
	gotCid, gotPHash, mac, ok := decodeShare(share)
	if !ok || gotCid != cid || gotPHash != pHash {
		return false
	}
	h := hmac.New(sha256.New, pub)
	h.Write(shareMessage(cid, rid, pHash))
	return hmac.Equal(h.Sum(nil), mac)
}

// Entry is one (witness, share) pair inside an aggregate.
type Entry struct {
	Witness id.WitnessId
	Share   id.ShareValue
}

// Combine concatenates bare shares deterministically. Real deployments
// combining witness-identified shares should prefer
// CombineWithWitnesses, which VerifyAggregate requires to look up each
// contributor's public key; this method exists to satisfy the Scheme
// interface where witness identity is tracked out of band.
func (s *ReferenceScheme) Combine(shares []id.ShareValue) (id.AggregatedSignature, error) {
	if len(shares) == 0 {
		return nil, ErrInsufficientShares
	}
	sorted := append([]id.ShareValue(nil), shares...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })
	var buf bytes.Buffer
	for _, sh := range sorted {
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(sh)))
		buf.Write(length[:])
		buf.Write(sh)
	}
	return id.AggregatedSignature(buf.Bytes()), nil
}

// CombineWithWitnesses aggregates shares together with the witness each
// one came from. Real threshold schemes compress this into a compact
// opaque signature; the reference scheme keeps the structure explicit so
// VerifyAggregate can recheck every contribution.
func (s *ReferenceScheme) CombineWithWitnesses(pairs []Entry) (id.AggregatedSignature, error) {
	if len(pairs) == 0 {
		return nil, ErrInsufficientShares
	}
	sorted := append([]Entry(nil), pairs...)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Witness.Bytes(), sorted[j].Witness.Bytes()) < 0
	})
	var buf bytes.Buffer
	for _, p := range sorted {
		wb := p.Witness.Bytes()
		var wlen, slen [4]byte
		binary.BigEndian.PutUint32(wlen[:], uint32(len(wb)))
		binary.BigEndian.PutUint32(slen[:], uint32(len(p.Share)))
		buf.Write(wlen[:])
		buf.Write(wb)
		buf.Write(slen[:])
		buf.Write(p.Share)
	}
	return id.AggregatedSignature(buf.Bytes()), nil
}

func decodeAggregate(sig id.AggregatedSignature) ([]Entry, bool) {
	var out []Entry
	buf := bytes.NewReader(sig)
	for buf.Len() > 0 {
		var wlen uint32
		if err := binary.Read(buf, binary.BigEndian, &wlen); err != nil {
			return nil, false
		}
		wb := make([]byte, wlen)
		if _, err := buf.Read(wb); err != nil {
			return nil, false
		}
		var slen uint32
		if err := binary.Read(buf, binary.BigEndian, &slen); err != nil {
			return nil, false
		}
		sb := make([]byte, slen)
		if _, err := buf.Read(sb); err != nil {
			return nil, false
		}
		var w id.WitnessId
		copy(w[:], wb)
		out = append(out, Entry{Witness: w, Share: sb})
	}
	return out, true
}

// GroupKeySet is the reference scheme's GroupPublicKey: every witness's
// individual public key, so VerifyAggregate can recheck each
// contribution.
type GroupKeySet map[id.WitnessId]WitnessPublicKey

// BuildGroupPublicKey serializes a GroupKeySet into the opaque
// GroupPublicKey bytes the Scheme interface expects.
func BuildGroupPublicKey(keys GroupKeySet) GroupPublicKey {
	witnesses := make([]id.WitnessId, 0, len(keys))
	for w := range keys {
		witnesses = append(witnesses, w)
	}
	sort.Slice(witnesses, func(i, j int) bool {
		return bytes.Compare(witnesses[i].Bytes(), witnesses[j].Bytes()) < 0
	})
	var buf bytes.Buffer
	for _, w := range witnesses {
		pk := keys[w]
		wb := w.Bytes()
		var wlen, klen [4]byte
		binary.BigEndian.PutUint32(wlen[:], uint32(len(wb)))
		binary.BigEndian.PutUint32(klen[:], uint32(len(pk)))
		buf.Write(wlen[:])
		buf.Write(wb)
		buf.Write(klen[:])
		buf.Write(pk)
	}
	return GroupPublicKey(buf.Bytes())
}

func decodeGroupPublicKey(group GroupPublicKey) (GroupKeySet, bool) {
	out := make(GroupKeySet)
	buf := bytes.NewReader(group)
	for buf.Len() > 0 {
		var wlen uint32
		if err := binary.Read(buf, binary.BigEndian, &wlen); err != nil {
			return nil, false
		}
		wb := make([]byte, wlen)
		if _, err := buf.Read(wb); err != nil {
			return nil, false
		}
		var klen uint32
		if err := binary.Read(buf, binary.BigEndian, &klen); err != nil {
			return nil, false
		}
		kb := make([]byte, klen)
		if _, err := buf.Read(kb); err != nil {
			return nil, false
		}
		var w id.WitnessId
		copy(w[:], wb)
		out[w] = kb
	}
	return out, true
}

// VerifyAggregate decodes sig into its (witness, share) entries and
// rechecks each one's HMAC against the witness's public key from group
// and the cid/pHash embedded in the share, using rid as the bound
// result. The aggregate verifies only if every Entry verifies and at
// least one Entry is present.
func (s *ReferenceScheme) VerifyAggregate(rid id.ResultId, sig id.AggregatedSignature, group GroupPublicKey) bool {
	pairs, ok := decodeAggregate(sig)
	if !ok || len(pairs) == 0 {
		return false
	}
	keys, ok := decodeGroupPublicKey(group)
	if !ok {
		return false
	}
	for _, p := range pairs {
		pub, known := keys[p.Witness]
		if !known {
			return false
		}
		cid, pHash, mac, ok := decodeShare(p.Share)
		if !ok {
			return false
		}
		h := hmac.New(sha256.New, pub)
		h.Write(shareMessage(cid, rid, pHash))
		if !hmac.Equal(h.Sum(nil), mac) {
			return false
		}
	}
	return true
}
