package protocol

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nemanja-m/gomar/pkg/datasource"
)

func TestTopics(t *testing.T) {
	jobID := uuid.MustParse("00000000-0000-0000-0000-000000000001")

	assert.Equal(t, "tasks.wordcount", TaskTopic("wordcount"))
	assert.Equal(t, "results.00000000-0000-0000-0000-000000000001", ResultTopic(jobID))
	assert.Equal(t, "cancel.00000000-0000-0000-0000-000000000001", CancelMarker(jobID))
}

func TestTask_EncodeDecode(t *testing.T) {
	task := &MapTask{
		JobID:    uuid.New(),
		Shard:    3,
		Attempt:  2,
		Function: "wordcount",
		Source: datasource.Shard{
			Source:  datasource.MemorySource,
			Index:   3,
			Count:   4,
			Offset:  3,
			Limit:   3,
			Options: []byte(`{"records":[]}`),
		},
	}

	data, err := EncodeTask(task)
	require.NoError(t, err)

	decoded, err := DecodeTask(data)
	require.NoError(t, err)
	assert.Equal(t, task.JobID, decoded.JobID)
	assert.Equal(t, task.Source.Offset, decoded.Source.Offset)
	assert.JSONEq(t, `{"records":[]}`, string(decoded.Source.Options))
	assert.Equal(t, task, decoded)
}

func TestTask_NegativeLimitSurvives(t *testing.T) {
	task := &MapTask{
		JobID:    uuid.New(),
		Function: "grep",
		Source:   datasource.Shard{Source: datasource.MemorySource, Count: 1, Limit: -1},
	}

	data, err := EncodeTask(task)
	require.NoError(t, err)
	decoded, err := DecodeTask(data)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), decoded.Source.Limit)
	assert.Equal(t, 0, decoded.Shard)
	assert.Nil(t, decoded.Source.Options)
}

func TestTask_WireFormat(t *testing.T) {
	task := &MapTask{JobID: uuid.New(), Function: "wordcount"}
	data, err := EncodeTask(task)
	require.NoError(t, err)

	assert.NotEqual(t, byte('{'), data[0], "tasks must not be JSON encoded")
	num, typ, n := protowire.ConsumeTag(data)
	require.Positive(t, n)
	assert.Equal(t, protowire.Number(1), num)
	assert.Equal(t, protowire.BytesType, typ)
}

func TestDecodeTask_Invalid(t *testing.T) {
	_, err := DecodeTask([]byte("not a task"))
	assert.Error(t, err)

	data, err := EncodeTask(&MapTask{Shard: 1, Function: "wordcount"})
	require.NoError(t, err)
	_, err = DecodeTask(data)
	assert.ErrorContains(t, err, "missing job id")

	data, err = EncodeTask(&MapTask{JobID: uuid.New(), Shard: 1})
	require.NoError(t, err)
	_, err = DecodeTask(data[:len(data)-1])
	assert.Error(t, err)
}

func TestResult_Failed(t *testing.T) {
	ok := &MapResult{JobID: uuid.New(), Value: []byte(`{"one":1}`)}
	failed := &MapResult{JobID: uuid.New(), Error: "boom"}

	data, err := EncodeResult(ok)
	require.NoError(t, err)
	decoded, err := DecodeResult(data)
	require.NoError(t, err)

	assert.False(t, decoded.Failed())
	assert.Equal(t, ok.Value, decoded.Value)
	assert.Equal(t, ok.JobID, decoded.JobID)

	data, err = EncodeResult(failed)
	require.NoError(t, err)
	decoded, err = DecodeResult(data)
	require.NoError(t, err)
	assert.True(t, decoded.Failed())
	assert.Equal(t, "boom", decoded.Error)
	assert.Nil(t, decoded.Value)
}

func TestDecodeResult_RequiresJobID(t *testing.T) {
	data, err := EncodeResult(&MapResult{Shard: 2, Value: []byte("1")})
	require.NoError(t, err)

	_, err = DecodeResult(data)
	assert.ErrorContains(t, err, "missing job id")
}
