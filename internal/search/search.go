// Package search runs last-round subkey searches: it enumerates subkey
// candidates confined to active nibbles and scores them on a worker pool.
package search

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/adilzafar66/differential-cryptanalysis/spn"
)

// DefaultBatchSize is the number of candidates a worker takes at a time.
const DefaultBatchSize = 64

// MaxActive caps the active nibbles of a search. Scores are kept for every
// one of the 16^k candidates, so k is held to what fits in memory.
const MaxActive = 6

// ErrTooManyActive is returned for searches wider than MaxActive nibbles.
var ErrTooManyActive = errors.New("too many active nibbles to search")

// Config tunes the worker pool. Zero values pick runtime.NumCPU() workers
// and DefaultBatchSize.
type Config struct {
	Workers   int
	BatchSize int
}

// Size is the number of candidate indices, including the all-zero one, for
// the given number of active nibbles.
func Size(active int) int {
	return 1 << (spn.NibbleBits * active)
}

// Candidate maps enumeration index i to a subkey whose non-zero nibbles
// sit only at the active positions of a count-nibble block: the j-th
// active position takes nibble len(active)-1-j of i.
func Candidate(active []int, count, i int) uint64 {
	var k uint64
	for j, pos := range active {
		shift := (len(active) - 1 - j) * spn.NibbleBits
		k = spn.WithNibble(k, pos, count, uint8(i>>shift))
	}
	return k
}

// Run evaluates score(i) for i in 1..total-1 in batches spread over the
// workers and returns the scores indexed by i; index 0 is left at 0. Each
// index is written by exactly one worker. ctx is checked between batches.
func Run(ctx context.Context, total int, cfg Config, score func(int) int) ([]int, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := make([]int, max(total, 1))
	numBatches := (total - 1 + batch - 1) / batch
	if numBatches <= 0 {
		return counts, nil
	}
	workers = min(workers, numBatches)

	batchCh := make(chan int, numBatches)
	for b := 0; b < numBatches; b++ {
		batchCh <- 1 + b*batch
	}
	close(batchCh)

	var wg sync.WaitGroup
	errCh := make(chan error, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for start := range batchCh {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				default:
				}

				end := min(start+batch, total)
				for i := start; i < end; i++ {
					counts[i] = score(i)
				}
			}
		}()
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	return counts, nil
}
