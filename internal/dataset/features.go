package dataset

import (
	"context"
	"errors"
	"log"
	"sync"

	"gorgonia.org/tensor"
)

// ErrNoImages is returned when not a single image could be decoded.
var ErrNoImages = errors.New("dataset: no image could be decoded")

// ExtractOptions configures the feature extraction pool.
type ExtractOptions struct {
	Size       int
	NumWorkers int
	// LogEvery controls the progress line frequency; zero disables it.
	LogEvery int
}

// Failure records one image that was dropped.
type Failure struct {
	Index int
	Path  string
	Err   error
}

// Features is the output of ExtractFeatures.
//
// X has shape (len(Kept), Size, Size, 1). Kept lists, in ascending order,
// the input indices that produced a row; row i of X belongs to input
// Kept[i]. Labels must be filtered with Labels.Select(Kept) before they are
// paired with X.
type Features struct {
	X      *tensor.Dense
	Kept   []int
	Failed []Failure
	Size   int
}

// Len returns the number of rows in X.
func (f *Features) Len() int { return len(f.Kept) }

// ExtractFeatures decodes every path into a grayscale row. Decoding runs on
// opts.NumWorkers goroutines, but rows are assembled in input order so the
// result does not depend on the worker count. Images that fail to decode are
// logged and dropped.
func ExtractFeatures(ctx context.Context, paths []string, opts ExtractOptions) (*Features, error) {
	if opts.Size <= 0 {
		opts.Size = DefaultImageSize
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	rowSize := opts.Size * opts.Size

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan decodeJob, opts.NumWorkers)
	results := make(chan decodeResult, opts.NumWorkers*2)

	go produceDecodeJobs(ctx, jobs, paths)

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decodeWorker(ctx, jobs, results, opts.Size)
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	rows, failed, err := collectRows(ctx, results, len(paths), opts.LogEvery)
	if err != nil {
		return nil, err
	}

	kept := make([]int, 0, len(paths))
	for i, row := range rows {
		if row != nil {
			kept = append(kept, i)
		}
	}
	if len(kept) == 0 {
		return nil, ErrNoImages
	}

	backing := make([]float32, 0, len(kept)*rowSize)
	for _, i := range kept {
		backing = append(backing, rows[i]...)
	}
	x := tensor.New(
		tensor.WithShape(len(kept), opts.Size, opts.Size, 1),
		tensor.WithBacking(backing),
	)
	return &Features{X: x, Kept: kept, Failed: failed, Size: opts.Size}, nil
}

type decodeJob struct {
	id   int
	path string
}

type decodeResult struct {
	id   int
	path string
	row  []float32
	err  error
}

func produceDecodeJobs(ctx context.Context, jobs chan<- decodeJob, paths []string) {
	defer close(jobs)
	for i, p := range paths {
		select {
		case <-ctx.Done():
			return
		case jobs <- decodeJob{id: i, path: p}:
		}
	}
}

func decodeWorker(ctx context.Context, jobs <-chan decodeJob, results chan<- decodeResult, size int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			row, err := LoadGray(job.path, size)
			select {
			case <-ctx.Done():
				return
			case results <- decodeResult{id: job.id, path: job.path, row: row, err: err}:
			}
		}
	}
}

// collectRows places each result in its input slot. Progress and failures
// are logged in input order: out-of-order results wait in pending until
// every earlier index has arrived.
func collectRows(ctx context.Context, results <-chan decodeResult, total, logEvery int) ([][]float32, []Failure, error) {
	rows := make([][]float32, total)
	pending := make(map[int]decodeResult)
	var failed []Failure
	next := 0
	for next < total {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case res, ok := <-results:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil, nil, err
				}
				return nil, nil, errors.New("dataset: decode workers exited early")
			}
			pending[res.id] = res
		}
		for {
			res, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if res.err != nil {
				log.Printf("error processing image %s: %v", res.path, res.err)
				failed = append(failed, Failure{Index: res.id, Path: res.path, Err: res.err})
			} else {
				rows[res.id] = res.row
			}
			if logEvery > 0 && next%logEvery == 0 {
				log.Printf("processed %d/%d images", next+1, total)
			}
			next++
		}
	}
	return rows, failed, nil
}

// Row returns a view of row i of a (N, H, W, C) float32 tensor.
func Row(x *tensor.Dense, i int) []float32 {
	data := x.Data().([]float32)
	shape := x.Shape()
	size := shape[1] * shape[2] * shape[3]
	return data[i*size : (i+1)*size]
}
