// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import "encoding/json"

// CodecVersion tags the wire format so peers can detect incompatible
// encodings, mirroring luxfi/consensus's codec/codec.go.
type CodecVersion uint16

// CurrentVersion is the version this package encodes with.
const CurrentVersion CodecVersion = 0

// Codec is the transport-level envelope encoder. It is not used for the
// hash-stable canonical encoding required for equivocation proofs (see
// Canonicalize in encode.go); it is the general marshal/unmarshal path
// for sending a decoded message struct over a transport.
var Codec = &JSONCodec{}

// JSONCodec marshals with a version prefix the same way
// luxfi/consensus's codec.JSONCodec does.
type JSONCodec struct{}

type envelope struct {
	Version CodecVersion    `json:"version"`
	Body    json.RawMessage `json:"body"`
}

// Marshal encodes v at the given version.
func (c *JSONCodec) Marshal(version CodecVersion, v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Version: version, Body: body})
}

// Unmarshal decodes data into v, returning the version it was encoded
// with.
func (c *JSONCodec) Unmarshal(data []byte, v interface{}) (CodecVersion, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, err
	}
	if err := json.Unmarshal(env.Body, v); err != nil {
		return 0, err
	}
	return env.Version, nil
}
