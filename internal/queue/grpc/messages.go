package grpc

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nemanja-m/gomar/internal/shared/wire"
)

// Field numbers follow the broker schema:
//
//	message PublishRequest  { string topic = 1; bytes payload = 2; }
//	message ConsumeRequest  { string topic = 1; uint64 wait_millis = 2; }
//	message ConsumeResponse { bool found = 1; string handle = 2; bytes payload = 3; uint64 deliveries = 4; }
//	message AckRequest      { string handle = 1; }  // also Extend
//	message PurgeRequest    { string topic = 1; }
//	message MarkRequest     { string key = 1; }
//	message MarkedResponse  { bool marked = 1; }
//	message Empty           {}

type publishRequest struct {
	Topic   string
	Payload []byte
}

func (m *publishRequest) marshalWire() []byte {
	var b []byte
	b = wire.AppendString(b, 1, m.Topic)
	b = wire.AppendBytes(b, 2, m.Payload)
	return b
}

func (m *publishRequest) unmarshalWire(b []byte) error {
	return wire.ConsumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return wire.ConsumeString(typ, b, &m.Topic)
		case 2:
			return wire.ConsumeBytes(typ, b, &m.Payload)
		}
		return wire.SkipField
	})
}

type consumeRequest struct {
	Topic      string
	WaitMillis uint64
}

func (m *consumeRequest) marshalWire() []byte {
	var b []byte
	b = wire.AppendString(b, 1, m.Topic)
	b = wire.AppendVarint(b, 2, m.WaitMillis)
	return b
}

func (m *consumeRequest) unmarshalWire(b []byte) error {
	return wire.ConsumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return wire.ConsumeString(typ, b, &m.Topic)
		case 2:
			return wire.ConsumeVarint(typ, b, &m.WaitMillis)
		}
		return wire.SkipField
	})
}

type consumeResponse struct {
	Found      bool
	Handle     string
	Payload    []byte
	Deliveries uint64
}

func (m *consumeResponse) marshalWire() []byte {
	var b []byte
	b = wire.AppendBool(b, 1, m.Found)
	b = wire.AppendString(b, 2, m.Handle)
	b = wire.AppendBytes(b, 3, m.Payload)
	b = wire.AppendVarint(b, 4, m.Deliveries)
	return b
}

func (m *consumeResponse) unmarshalWire(b []byte) error {
	return wire.ConsumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return wire.ConsumeBool(typ, b, &m.Found)
		case 2:
			return wire.ConsumeString(typ, b, &m.Handle)
		case 3:
			return wire.ConsumeBytes(typ, b, &m.Payload)
		case 4:
			return wire.ConsumeVarint(typ, b, &m.Deliveries)
		}
		return wire.SkipField
	})
}

type ackRequest struct {
	Handle string
}

func (m *ackRequest) marshalWire() []byte {
	return wire.AppendString(nil, 1, m.Handle)
}

func (m *ackRequest) unmarshalWire(b []byte) error {
	return wire.ConsumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return wire.ConsumeString(typ, b, &m.Handle)
		}
		return wire.SkipField
	})
}

type purgeRequest struct {
	Topic string
}

func (m *purgeRequest) marshalWire() []byte {
	return wire.AppendString(nil, 1, m.Topic)
}

func (m *purgeRequest) unmarshalWire(b []byte) error {
	return wire.ConsumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return wire.ConsumeString(typ, b, &m.Topic)
		}
		return wire.SkipField
	})
}

type markRequest struct {
	Key string
}

func (m *markRequest) marshalWire() []byte {
	return wire.AppendString(nil, 1, m.Key)
}

func (m *markRequest) unmarshalWire(b []byte) error {
	return wire.ConsumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return wire.ConsumeString(typ, b, &m.Key)
		}
		return wire.SkipField
	})
}

type markedResponse struct {
	Marked bool
}

func (m *markedResponse) marshalWire() []byte {
	return wire.AppendBool(nil, 1, m.Marked)
}

func (m *markedResponse) unmarshalWire(b []byte) error {
	return wire.ConsumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return wire.ConsumeBool(typ, b, &m.Marked)
		}
		return wire.SkipField
	})
}

type empty struct{}

func (*empty) marshalWire() []byte {
	return nil
}

func (*empty) unmarshalWire(b []byte) error {
	return wire.ConsumeFields(b, func(protowire.Number, protowire.Type, []byte) int {
		return wire.SkipField
	})
}
