package batch

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"ctr-asset-decoder/internal/importer"
	"ctr-asset-decoder/internal/logging"
)

// Config holds the shared settings of a batch run.
type Config struct {
	Decoder importer.Decoder
	Workers int
	// Progress receives a status line every two seconds; nil disables it.
	Progress io.Writer
}

// Result holds the outcome of one input file.
type Result struct {
	Path    string
	Kind    importer.Kind
	Err     error
	Stats   importer.Stats
	Outputs []string // files written by the deliver func
}

// DeliverFunc consumes one decoded asset and returns the files it wrote.
// Calls are serialized on a single goroutine.
type DeliverFunc func(path string, a *importer.Asset) ([]string, error)

type decoded struct {
	idx   int
	asset *importer.Asset
}

// Run decodes paths on cfg.Workers goroutines and hands each asset to
// deliver. Results keep the order of paths. Cancelling ctx stops feeding
// work; files never started report ctx.Err().
func Run(ctx context.Context, cfg Config, paths []string, deliver DeliverFunc) []Result {
	total := len(paths)
	results := make([]Result, total)
	for i, p := range paths {
		results[i].Path = p
	}
	workers := max(cfg.Workers, 1)
	var processed atomic.Int64
	start := time.Now()

	done := make(chan struct{})
	if cfg.Progress != nil {
		go func() {
			ticker := time.NewTicker(2 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					if p := processed.Load(); p > 0 {
						rate := float64(p) / time.Since(start).Seconds()
						fmt.Fprintf(cfg.Progress, "  [%d/%d] %.1f files/sec\n", p, total, rate)
					}
				}
			}
		}()
	}

	// Single consumer: sinks are not safe for concurrent use.
	out := make(chan decoded, workers)
	var consumer sync.WaitGroup
	consumer.Add(1)
	go func() {
		defer consumer.Done()
		for d := range out {
			r := &results[d.idx]
			files, err := deliver(r.Path, d.asset)
			r.Outputs = files
			if err != nil {
				r.Err = fmt.Errorf("deliver: %w", err)
				logging.Logger().Warn("output failed", "file", r.Path, "err", err)
			}
			processed.Add(1)
		}
	}()

	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				r := &results[idx]
				d := cfg.Decoder
				a, err := d.Decode(r.Path)
				if err != nil {
					r.Err = err
					logging.Logger().Warn("decode failed", "file", r.Path, "err", err)
					processed.Add(1)
					continue
				}
				r.Kind = a.Kind
				r.Stats = a.Stats()
				out <- decoded{idx: idx, asset: a}
			}
		}()
	}

	fed := 0
feed:
	for ; fed < total && ctx.Err() == nil; fed++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- fed:
		}
	}
	close(jobs)
	wg.Wait()
	close(out)
	consumer.Wait()
	close(done)

	for i := fed; i < total; i++ {
		results[i].Err = ctx.Err()
	}
	return results
}

// Summary counts successes and failures and sums the stats of successes.
func Summary(results []Result) (ok, failed int, total importer.Stats) {
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		ok++
		total.Add(r.Stats)
	}
	return ok, failed, total
}
