// Package codec defines the return-value serialization contract.
//
// The cache stores a computation's return value as opaque bytes; a Codec
// converts between the Go value and that byte form. CBOR is the default:
// it is self-describing, compact, and round-trips Go maps, slices, and
// structs without schema generation. JSON is offered for caches that are
// inspected by hand.
package codec

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
)

// Codec serializes return values for storage. Encodings must be stable
// across processes and machines: a value cached on one host must decode
// on another.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// CBOR encodes values as RFC 8949 CBOR.
type CBOR struct{}

func (CBOR) Marshal(v any) ([]byte, error) { return cbor.Marshal(v) }

func (CBOR) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

// JSON encodes values as JSON. Entries are larger and lose some type
// fidelity (e.g. map key types), but are readable with any text tool.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
