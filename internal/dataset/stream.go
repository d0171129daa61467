package dataset

import (
	"context"
	"sync"
)

// Recording is one decoded file, tagged with its position in the request.
type Recording struct {
	Index int
	Path  string
	Raw   *Raw
}

type decoded struct {
	index int
	raw   *Raw
	err   error
}

// StreamRecordings decodes paths with up to workers concurrent readers and
// emits them in request order. The error channel yields at most one error
// and is closed after the recording channel. Consumers must drain the
// recording channel or cancel ctx.
func StreamRecordings(parent context.Context, paths []string, workers int) (<-chan Recording, <-chan error) {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(parent)

	jobs := make(chan int)
	results := make(chan decoded, workers)
	out := make(chan Recording, workers)
	errCh := make(chan error, 1)

	go func() {
		defer close(jobs)
		for i := range paths {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				raw, err := ReadEDFFile(paths[i])
				select {
				case <-ctx.Done():
					return
				case results <- decoded{index: i, raw: raw, err: err}:
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer cancel()
		defer close(errCh)
		defer close(out)
		runReorder(ctx, paths, results, out, errCh)
	}()

	return out, errCh
}

// runReorder holds decoded files until every earlier index has been emitted.
func runReorder(ctx context.Context, paths []string, results <-chan decoded, out chan<- Recording, errCh chan<- error) {
	pending := make(map[int]*Raw)
	next := 0
	for res := range results {
		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}
		if res.err != nil {
			errCh <- res.err
			return
		}
		pending[res.index] = res.raw
		for {
			raw, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- Recording{Index: next, Path: paths[next], Raw: raw}:
			}
			next++
		}
	}
	if next < len(paths) {
		if err := ctx.Err(); err != nil {
			errCh <- err
		}
	}
}

// ReadRecordings decodes every path, in order, using StreamRecordings.
func ReadRecordings(ctx context.Context, paths []string, workers int) ([]*Raw, error) {
	stream, errCh := StreamRecordings(ctx, paths, workers)
	raws := make([]*Raw, 0, len(paths))
	for rec := range stream {
		raws = append(raws, rec.Raw)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return raws, nil
}
