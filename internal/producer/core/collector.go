package core

// ResultCollector gathers one partial value per shard index in [0, n).
// Duplicates from redelivered tasks are dropped on arrival.
type ResultCollector struct {
	values   [][]byte
	received []bool
	count    int
}

func NewResultCollector(n int) *ResultCollector {
	return &ResultCollector{
		values:   make([][]byte, n),
		received: make([]bool, n),
	}
}

// Add stores value for shard and reports whether it was the first value
// for that shard. Out-of-range shards are rejected.
func (c *ResultCollector) Add(shard int, value []byte) bool {
	if shard < 0 || shard >= len(c.values) || c.received[shard] {
		return false
	}
	c.values[shard] = value
	c.received[shard] = true
	c.count++
	return true
}

func (c *ResultCollector) Has(shard int) bool {
	return shard >= 0 && shard < len(c.received) && c.received[shard]
}

func (c *ResultCollector) Complete() bool {
	return c.count == len(c.values)
}

func (c *ResultCollector) Len() int {
	return c.count
}

// Missing returns the shard indices without a value, in ascending order.
func (c *ResultCollector) Missing() []int {
	missing := make([]int, 0, len(c.values)-c.count)
	for shard, ok := range c.received {
		if !ok {
			missing = append(missing, shard)
		}
	}
	return missing
}

// Ordered returns the collected values sorted by shard index.
func (c *ResultCollector) Ordered() [][]byte {
	return append([][]byte(nil), c.values...)
}
