// Package protocol defines the messages exchanged between producers and
// workers over the queue and the topics they travel on.
package protocol

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/nemanja-m/gomar/internal/shared/wire"
	"github.com/nemanja-m/gomar/pkg/datasource"
)

// MapTask asks a worker to run Function over one shard.
type MapTask struct {
	JobID    uuid.UUID        `json:"job_id"`
	Shard    int              `json:"shard"`
	Attempt  int              `json:"attempt"`
	Function string           `json:"function"`
	Source   datasource.Shard `json:"source"`
}

// MapResult carries the outcome of one MapTask execution. A non-empty Error
// marks it as a map error and Value is then ignored.
type MapResult struct {
	JobID   uuid.UUID `json:"job_id"`
	Shard   int       `json:"shard"`
	Attempt int       `json:"attempt"`
	Value   []byte    `json:"value,omitempty"`
	Error   string    `json:"error,omitempty"`
}

func (r *MapResult) Failed() bool {
	return r.Error != ""
}

// TaskTopic is the topic shared by all workers serving producer name.
func TaskTopic(producer string) string {
	return "tasks." + producer
}

// ResultTopic is the per-job topic map results are published to.
func ResultTopic(jobID uuid.UUID) string {
	return "results." + jobID.String()
}

// CancelMarker is the marker key set when a job no longer accepts work.
func CancelMarker(jobID uuid.UUID) string {
	return "cancel." + jobID.String()
}

// Envelopes travel in the protobuf wire format:
//
//	message Shard     { string source = 1; sint64 index = 2; sint64 count = 3; sint64 offset = 4; sint64 limit = 5; bytes options = 6; }
//	message MapTask   { bytes job_id = 1; sint64 shard = 2; sint64 attempt = 3; string function = 4; Shard source = 5; }
//	message MapResult { bytes job_id = 1; sint64 shard = 2; sint64 attempt = 3; bytes value = 4; string error = 5; }
//
// Shard options stay an opaque JSON document owned by the driver.

func EncodeTask(task *MapTask) ([]byte, error) {
	var b []byte
	b = wire.AppendBytes(b, 1, task.JobID[:])
	b = wire.AppendSint(b, 2, int64(task.Shard))
	b = wire.AppendSint(b, 3, int64(task.Attempt))
	b = wire.AppendString(b, 4, task.Function)
	b = wire.AppendMessage(b, 5, encodeShard(task.Source))
	return b, nil
}

func DecodeTask(data []byte) (*MapTask, error) {
	var (
		task  MapTask
		jobID []byte
		shard []byte
		err   error
	)
	err = wire.ConsumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return wire.ConsumeBytes(typ, b, &jobID)
		case 2:
			return consumeInt(typ, b, &task.Shard)
		case 3:
			return consumeInt(typ, b, &task.Attempt)
		case 4:
			return wire.ConsumeString(typ, b, &task.Function)
		case 5:
			return wire.ConsumeBytes(typ, b, &shard)
		}
		return wire.SkipField
	})
	if err != nil {
		return nil, fmt.Errorf("invalid map task: %w", err)
	}
	if task.JobID, err = decodeJobID(jobID); err != nil {
		return nil, fmt.Errorf("invalid map task: %w", err)
	}
	if task.Source, err = decodeShard(shard); err != nil {
		return nil, fmt.Errorf("invalid map task: %w", err)
	}
	return &task, nil
}

func EncodeResult(result *MapResult) ([]byte, error) {
	var b []byte
	b = wire.AppendBytes(b, 1, result.JobID[:])
	b = wire.AppendSint(b, 2, int64(result.Shard))
	b = wire.AppendSint(b, 3, int64(result.Attempt))
	b = wire.AppendBytes(b, 4, result.Value)
	b = wire.AppendString(b, 5, result.Error)
	return b, nil
}

func DecodeResult(data []byte) (*MapResult, error) {
	var (
		result MapResult
		jobID  []byte
	)
	err := wire.ConsumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return wire.ConsumeBytes(typ, b, &jobID)
		case 2:
			return consumeInt(typ, b, &result.Shard)
		case 3:
			return consumeInt(typ, b, &result.Attempt)
		case 4:
			return wire.ConsumeBytes(typ, b, &result.Value)
		case 5:
			return wire.ConsumeString(typ, b, &result.Error)
		}
		return wire.SkipField
	})
	if err != nil {
		return nil, fmt.Errorf("invalid map result: %w", err)
	}
	if result.JobID, err = decodeJobID(jobID); err != nil {
		return nil, fmt.Errorf("invalid map result: %w", err)
	}
	return &result, nil
}

func encodeShard(s datasource.Shard) []byte {
	var b []byte
	b = wire.AppendString(b, 1, s.Source)
	b = wire.AppendSint(b, 2, int64(s.Index))
	b = wire.AppendSint(b, 3, int64(s.Count))
	b = wire.AppendSint(b, 4, s.Offset)
	b = wire.AppendSint(b, 5, s.Limit)
	b = wire.AppendBytes(b, 6, s.Options)
	return b
}

func decodeShard(data []byte) (datasource.Shard, error) {
	var (
		s       datasource.Shard
		options []byte
	)
	err := wire.ConsumeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return wire.ConsumeString(typ, b, &s.Source)
		case 2:
			return consumeInt(typ, b, &s.Index)
		case 3:
			return consumeInt(typ, b, &s.Count)
		case 4:
			return wire.ConsumeSint(typ, b, &s.Offset)
		case 5:
			return wire.ConsumeSint(typ, b, &s.Limit)
		case 6:
			return wire.ConsumeBytes(typ, b, &options)
		}
		return wire.SkipField
	})
	if len(options) > 0 {
		s.Options = options
	}
	return s, err
}

func consumeInt(typ protowire.Type, b []byte, dst *int) int {
	var v int64
	n := wire.ConsumeSint(typ, b, &v)
	if n > 0 {
		*dst = int(v)
	}
	return n
}

func decodeJobID(b []byte) (uuid.UUID, error) {
	if len(b) == 0 {
		return uuid.Nil, errors.New("missing job id")
	}
	id, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.Nil, fmt.Errorf("bad job id: %w", err)
	}
	if id == uuid.Nil {
		return uuid.Nil, errors.New("missing job id")
	}
	return id, nil
}
