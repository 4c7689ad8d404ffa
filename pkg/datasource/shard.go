package datasource

import (
	"encoding/json"
	"fmt"
)

// Shard describes one partition of a data source. It is everything a worker
// needs to rebuild the partition without talking to the producer, so it
// never carries live handles.
type Shard struct {
	Source  string          `json:"source"`
	Index   int             `json:"index"`
	Count   int             `json:"count"`
	Offset  int64           `json:"offset"`
	Limit   int64           `json:"limit"`
	Options json.RawMessage `json:"options,omitempty"`
}

func (s Shard) String() string {
	return fmt.Sprintf("%s[%d/%d offset=%d limit=%d]", s.Source, s.Index, s.Count, s.Offset, s.Limit)
}

// RangeShards splits [0, total) into n contiguous ranges of total/n records.
// The last range absorbs the remainder.
func RangeShards(total int64, n int) []Shard {
	if n <= 0 {
		return nil
	}
	size := total / int64(n)
	shards := make([]Shard, n)
	for i := range shards {
		shards[i] = Shard{
			Index:  i,
			Count:  n,
			Offset: int64(i) * size,
			Limit:  size,
		}
	}
	shards[n-1].Limit = total - int64(n-1)*size
	return shards
}
