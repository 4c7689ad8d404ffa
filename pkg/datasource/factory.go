package datasource

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nemanja-m/gomar/pkg/core"
)

// Factory splits a configured source into shard descriptors. It never
// reads records itself beyond what the driver needs to count or split.
type Factory struct {
	source  string
	driver  Opener
	options json.RawMessage
}

// NewFactory validates that source is registered with the required
// capabilities and captures its options.
func NewFactory(source string, options any) (*Factory, error) {
	driver, err := lookup(source)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	switch opts := options.(type) {
	case nil:
		raw = json.RawMessage("{}")
	case json.RawMessage:
		raw = opts
	default:
		raw, err = json.Marshal(opts)
		if err != nil {
			return nil, &core.ConfigurationError{Component: "source", Reason: "options are not serializable", Err: err}
		}
	}

	return &Factory{source: source, driver: driver, options: raw}, nil
}

// Source returns the registered name of the factory's source.
func (f *Factory) Source() string {
	return f.source
}

// Split returns exactly n shards that together cover the dataset without
// overlap.
func (f *Factory) Split(ctx context.Context, n int) ([]Shard, error) {
	if n <= 0 {
		return nil, &core.ConfigurationError{Component: "source", Reason: fmt.Sprintf("shard count must be positive, got %d", n)}
	}

	var (
		shards []Shard
		err    error
	)
	if splitter, ok := f.driver.(Splitter); ok {
		shards, err = splitter.Split(ctx, f.options, n)
		if err != nil {
			return nil, err
		}
	} else {
		total, err := f.driver.(Counter).Count(ctx, f.options)
		if err != nil {
			return nil, fmt.Errorf("failed to count records of %s: %w", f.source, err)
		}
		if total == 0 {
			return nil, &core.EmptySourceError{Source: f.source}
		}
		shards = RangeShards(total, n)
	}

	if len(shards) != n {
		return nil, fmt.Errorf("source %s returned %d shards, want %d", f.source, len(shards), n)
	}
	for i := range shards {
		shards[i].Source = f.source
		shards[i].Index = i
		shards[i].Count = n
		if len(shards[i].Options) == 0 {
			shards[i].Options = f.options
		}
	}
	return shards, nil
}

// Resolve opens the DataSource described by shard. It runs on the worker.
func Resolve(ctx context.Context, shard Shard) (core.DataSource, error) {
	driver, err := lookup(shard.Source)
	if err != nil {
		return nil, err
	}
	return driver.Open(ctx, shard)
}

func decodeOptions(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &core.ConfigurationError{Component: "source", Reason: "invalid options", Err: err}
	}
	return nil
}
