package impute

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work of a run: the imputations assigned to one
// worker.
type Task func(ctx context.Context) error

// Executor runs the tasks of a run.  Execute returns after all tasks
// have completed, or after the first failure.
type Executor interface {
	Execute(ctx context.Context, tasks []Task) error
}

// Serial runs the tasks one after the other in the calling goroutine.
type Serial struct{}

// Execute runs the tasks in order, stopping at the first error.
func (Serial) Execute(ctx context.Context, tasks []Task) error {
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := task(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Parallel runs each task in its own goroutine.  The first failure
// cancels the context passed to the other tasks, and is returned as a
// *WorkerError.
type Parallel struct{}

// Execute runs the tasks concurrently.
func (Parallel) Execute(ctx context.Context, tasks []Task) error {

	g, ctx := errgroup.WithContext(ctx)
	for w, task := range tasks {
		w, task := w, task
		g.Go(func() error {
			if err := task(ctx); err != nil {
				return &WorkerError{Worker: w, Err: err}
			}
			return nil
		})
	}

	return g.Wait()
}

// Chunk is a contiguous range of imputation indices assigned to one
// worker.
type Chunk struct {
	Start int
	Len   int
}

// Partition divides m imputations among the given number of workers,
// using no more workers than imputations.  Each worker gets m/workers
// imputations and the last worker also gets the remainder.
func Partition(m, workers int) []Chunk {

	if workers > m {
		workers = m
	}
	if workers < 1 {
		workers = 1
	}

	per := m / workers
	chunks := make([]Chunk, workers)
	for w := range chunks {
		chunks[w] = Chunk{Start: w * per, Len: per}
	}
	chunks[workers-1].Len = m - (workers-1)*per

	return chunks
}

// deriveSeed returns the seed of the random stream of imputation i,
// using the splitmix64 mixing function so that the streams of
// neighboring imputations are unrelated.
func deriveSeed(seed uint64, i int) uint64 {
	z := seed + uint64(i+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
