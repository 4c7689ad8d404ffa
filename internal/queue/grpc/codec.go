package grpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype of broker frames.
const codecName = "gomarwire"

// wireMessage is implemented by every broker frame. Frames are encoded in
// the protobuf wire format with the helpers of the shared wire package.
type wireMessage interface {
	marshalWire() []byte
	unmarshalWire(b []byte) error
}

type codec struct{}

func init() {
	encoding.RegisterCodec(codec{})
}

func (codec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("gomarwire: cannot marshal %T", v)
	}
	return msg.marshalWire(), nil
}

func (codec) Unmarshal(data []byte, v any) error {
	msg, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("gomarwire: cannot unmarshal into %T", v)
	}
	return msg.unmarshalWire(data)
}

func (codec) Name() string {
	return codecName
}
