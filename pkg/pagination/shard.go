package pagination

import "fmt"

// Shard is the contiguous page range [Start, End) owned by one worker.
type Shard struct {
	Worker int
	Start  int
	End    int
}

// Len returns the number of pages in the shard.
func (s Shard) Len() int {
	return s.End - s.Start
}

// Contains reports whether page belongs to the shard.
func (s Shard) Contains(page int) bool {
	return page >= s.Start && page < s.End
}

// Partition splits [0, n) into w contiguous shards of n/w pages each. The
// last shard also takes the n%w remainder pages, so every index is covered
// exactly once.
func Partition(n, w int) ([]Shard, error) {
	if w <= 0 {
		return nil, fmt.Errorf("worker count must be positive (got %d)", w)
	}
	if n < 0 {
		return nil, fmt.Errorf("page count must not be negative (got %d)", n)
	}

	size := n / w
	shards := make([]Shard, w)
	for i := range shards {
		shards[i] = Shard{
			Worker: i,
			Start:  i * size,
			End:    (i + 1) * size,
		}
	}
	shards[w-1].End = n

	return shards, nil
}

// ShardFor returns the shard containing page.
func ShardFor(shards []Shard, page int) (Shard, bool) {
	for _, s := range shards {
		if s.Contains(page) {
			return s, true
		}
	}
	return Shard{}, false
}
