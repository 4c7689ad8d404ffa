package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestFieldsRoundTrip(t *testing.T) {
	var b []byte
	b = AppendString(b, 1, "topic")
	b = AppendBytes(b, 2, []byte{0, 1})
	b = AppendVarint(b, 3, 7)
	b = AppendSint(b, 4, -1)
	b = AppendBool(b, 5, true)
	b = AppendString(b, 9, "unknown")

	var (
		s     string
		bytes []byte
		u     uint64
		i     int64
		flag  bool
	)
	err := ConsumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return ConsumeString(typ, b, &s)
		case 2:
			return ConsumeBytes(typ, b, &bytes)
		case 3:
			return ConsumeVarint(typ, b, &u)
		case 4:
			return ConsumeSint(typ, b, &i)
		case 5:
			return ConsumeBool(typ, b, &flag)
		}
		return SkipField
	})
	require.NoError(t, err)

	assert.Equal(t, "topic", s)
	assert.Equal(t, []byte{0, 1}, bytes)
	assert.Equal(t, uint64(7), u)
	assert.Equal(t, int64(-1), i)
	assert.True(t, flag)
}

func TestZeroValuesAreOmitted(t *testing.T) {
	var b []byte
	b = AppendString(b, 1, "")
	b = AppendBytes(b, 2, nil)
	b = AppendSint(b, 3, 0)
	b = AppendBool(b, 4, false)
	assert.Empty(t, b)

	assert.NotEmpty(t, AppendMessage(nil, 5, nil), "embedded messages are always written")
}

func TestConsumeFields_WrongTypeIsSkipped(t *testing.T) {
	b := AppendVarint(nil, 1, 42)

	var s string
	err := ConsumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		return ConsumeString(typ, b, &s)
	})
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestConsumeFields_Truncated(t *testing.T) {
	b := AppendString(nil, 1, "payload")
	err := ConsumeFields(b[:len(b)-3], func(num protowire.Number, typ protowire.Type, b []byte) int {
		return SkipField
	})
	assert.Error(t, err)
}
