package core

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
)

// Record is a single document read from a DataSource.
type Record map[string]any

// String returns the field as a string, formatting non-string values.
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// DataSource is a live, bounded view over one shard of a dataset.
type DataSource interface {
	Records(ctx context.Context) iter.Seq2[Record, error]
	Close() error
}

// MapFunc turns one shard into a serialized partial value.
// It may run more than once for the same shard and must be idempotent.
type MapFunc func(ctx context.Context, src DataSource) ([]byte, error)

// ReduceFunc folds the partial values, ordered by shard index, into the
// final job output.
type ReduceFunc func(ctx context.Context, partials [][]byte) ([]byte, error)

// MapJSON adapts a typed map function into a MapFunc that encodes its
// result as JSON.
func MapJSON[T any](fn func(ctx context.Context, src DataSource) (T, error)) MapFunc {
	return func(ctx context.Context, src DataSource) ([]byte, error) {
		partial, err := fn(ctx, src)
		if err != nil {
			return nil, err
		}
		return json.Marshal(partial)
	}
}

// ReduceJSON adapts a typed reduce function into a ReduceFunc that decodes
// each partial from JSON and encodes the final value as JSON.
func ReduceJSON[T, R any](fn func(ctx context.Context, partials []T) (R, error)) ReduceFunc {
	return func(ctx context.Context, raw [][]byte) ([]byte, error) {
		partials := make([]T, len(raw))
		for i, data := range raw {
			if err := json.Unmarshal(data, &partials[i]); err != nil {
				return nil, fmt.Errorf("failed to decode partial %d: %w", i, err)
			}
		}
		final, err := fn(ctx, partials)
		if err != nil {
			return nil, err
		}
		return json.Marshal(final)
	}
}

// DecodeJSON decodes a job output produced by a ReduceJSON function.
func DecodeJSON[R any](data []byte) (R, error) {
	var out R
	err := json.Unmarshal(data, &out)
	return out, err
}
