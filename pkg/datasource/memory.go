package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/nemanja-m/gomar/pkg/core"
)

// MemorySource is the name of the driver over records carried inline in
// the options.
const MemorySource = "memory"

// MemoryOptions configures the memory driver. When PartitionKey is set,
// records are assigned to shards by hashing that field instead of by
// position.
//
// Split hands every shard only its own records; Base is then the position
// of Records[0] in the whole dataset.
type MemoryOptions struct {
	Records      []core.Record `json:"records"`
	PartitionKey string        `json:"partition_key,omitempty"`
	Base         int64         `json:"base,omitempty"`
}

type memoryDriver struct{}

func init() {
	mustRegister(MemorySource, memoryDriver{})
}

func (memoryDriver) Count(_ context.Context, options json.RawMessage) (int64, error) {
	var opts MemoryOptions
	if err := decodeOptions(options, &opts); err != nil {
		return 0, err
	}
	return int64(len(opts.Records)), nil
}

func (d memoryDriver) Split(ctx context.Context, options json.RawMessage, n int) ([]Shard, error) {
	var opts MemoryOptions
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	if len(opts.Records) == 0 {
		return nil, &core.EmptySourceError{Source: MemorySource}
	}

	if opts.PartitionKey == "" {
		shards := RangeShards(int64(len(opts.Records)), n)
		for i := range shards {
			start, end := shards[i].Offset, shards[i].Offset+shards[i].Limit
			raw, err := json.Marshal(MemoryOptions{Records: opts.Records[start:end], Base: start})
			if err != nil {
				return nil, fmt.Errorf("failed to encode shard %d: %w", i, err)
			}
			shards[i].Options = raw
		}
		return shards, nil
	}

	buckets := make([][]core.Record, n)
	for _, record := range opts.Records {
		p := core.Partition(record.String(opts.PartitionKey), n)
		buckets[p] = append(buckets[p], record)
	}
	shards := make([]Shard, n)
	for i := range shards {
		raw, err := json.Marshal(MemoryOptions{Records: buckets[i], PartitionKey: opts.PartitionKey})
		if err != nil {
			return nil, fmt.Errorf("failed to encode shard %d: %w", i, err)
		}
		shards[i] = Shard{Index: i, Count: n, Limit: -1, Options: raw}
	}
	return shards, nil
}

func (memoryDriver) Open(_ context.Context, shard Shard) (core.DataSource, error) {
	var opts MemoryOptions
	if err := decodeOptions(shard.Options, &opts); err != nil {
		return nil, err
	}

	if opts.PartitionKey != "" {
		var records []core.Record
		for _, record := range opts.Records {
			if core.Partition(record.String(opts.PartitionKey), shard.Count) == shard.Index {
				records = append(records, record)
			}
		}
		return &memorySource{records: records}, nil
	}

	total := int64(len(opts.Records))
	start := min(max(shard.Offset-opts.Base, 0), total)
	end := min(start+max(shard.Limit, 0), total)
	return &memorySource{records: opts.Records[start:end]}, nil
}

type memorySource struct {
	records []core.Record
}

func (s *memorySource) Records(ctx context.Context) iter.Seq2[core.Record, error] {
	return func(yield func(core.Record, error) bool) {
		for _, record := range s.records {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

func (s *memorySource) Close() error {
	return nil
}
