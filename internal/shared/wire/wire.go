// Package wire holds helpers for encoding messages in the protobuf wire
// format by hand, so broker frames and task envelopes need no generated
// code. Zero values are omitted, as proto3 does.
package wire

import "google.golang.org/protobuf/encoding/protowire"

func AppendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func AppendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendSint encodes v as a zigzag varint (sint64).
func AppendSint(b []byte, num protowire.Number, v int64) []byte {
	return AppendVarint(b, num, protowire.EncodeZigZag(v))
}

func AppendBool(b []byte, num protowire.Number, v bool) []byte {
	return AppendVarint(b, num, protowire.EncodeBool(v))
}

// AppendMessage encodes an embedded message. Unlike scalars it is written
// even when empty.
func AppendMessage(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// FieldDecoder consumes the value of one field and returns its length, or
// a negative protowire error code. Returning SkipField leaves the field to
// be skipped as unknown.
type FieldDecoder func(num protowire.Number, typ protowire.Type, b []byte) int

const SkipField = 0

// ConsumeFields walks every field of b.
func ConsumeFields(b []byte, decode FieldDecoder) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m := decode(num, typ, b)
		if m == SkipField {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

func ConsumeString(typ protowire.Type, b []byte, dst *string) int {
	if typ != protowire.BytesType {
		return SkipField
	}
	v, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = v
	}
	return n
}

func ConsumeBytes(typ protowire.Type, b []byte, dst *[]byte) int {
	if typ != protowire.BytesType {
		return SkipField
	}
	v, n := protowire.ConsumeBytes(b)
	if n >= 0 {
		*dst = append([]byte(nil), v...)
	}
	return n
}

func ConsumeVarint(typ protowire.Type, b []byte, dst *uint64) int {
	if typ != protowire.VarintType {
		return SkipField
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = v
	}
	return n
}

func ConsumeSint(typ protowire.Type, b []byte, dst *int64) int {
	var v uint64
	n := ConsumeVarint(typ, b, &v)
	if n > 0 {
		*dst = protowire.DecodeZigZag(v)
	}
	return n
}

func ConsumeBool(typ protowire.Type, b []byte, dst *bool) int {
	var v uint64
	n := ConsumeVarint(typ, b, &v)
	if n > 0 {
		*dst = protowire.DecodeBool(v)
	}
	return n
}
