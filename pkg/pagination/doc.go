// Package pagination partitions a page-index space across a fixed worker pool
// and drives each worker through its shard.
//
// Every worker owns one contiguous shard and its own Handler (and therefore
// its own HTTP client). Pages inside a shard are handled strictly in ascending
// order; there is no ordering between shards.
//
// Example usage:
//
//	shards, err := pagination.Partition(10098, 4)
//	pool := &pagination.Pool{
//		Shards:     shards,
//		Completed:  completed,
//		Recorder:   aggregator,
//		NewHandler: newHandler,
//	}
//	err = pool.Run(ctx)
//
// The pool:
//   - Skips pages already in the completion set without calling the handler
//   - Records every handled page as succeeded or failed
//   - Keeps going after a failed page; one page never aborts a shard
//   - Returns once all workers have joined
package pagination
