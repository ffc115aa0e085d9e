// Package rpc defines the Ledger gRPC service shared by the client and the
// server: request and response messages, the service descriptor, a typed
// client, and the mapping between sentinel errors and status codes.
//
// Messages are plain Go structs carried by a JSON codec registered under
// the "json" content subtype; the service has no protobuf schema.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const CodecName = "json"

type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (Codec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(Codec{})
}
