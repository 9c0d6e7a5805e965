package orchestrator

import (
	"context"
	"sync"
)

// ProcessAll applies Process to each file independently. One file's failure
// is recorded in its outcome and never stops the remaining files; the
// returned slice always has one entry per input path, in input order.
//
// workers ≤ 1 processes files sequentially. Larger values fan the files out
// over a bounded worker pool; each file's document and report are fully
// isolated, so the only shared state is the progress callback, which the
// caller must make safe for concurrent use.
func (o *Orchestrator) ProcessAll(ctx context.Context, paths []string, workers int) []FileOutcome {
	outcomes := make([]FileOutcome, len(paths))

	if workers <= 1 {
		for i, path := range paths {
			if err := ctx.Err(); err != nil {
				outcomes[i] = FileOutcome{Path: path, Err: err}
				continue
			}
			outcomes[i] = o.processOne(ctx, path)
		}
		return outcomes
	}

	if workers > len(paths) {
		workers = len(paths)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = o.processOne(ctx, paths[i])
			}
		}()
	}

	for i := range paths {
		if err := ctx.Err(); err != nil {
			outcomes[i] = FileOutcome{Path: paths[i], Err: err}
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

// processOne runs Process for a single file, turning its result into an
// outcome. The per-file orchestrator clears OutPath so every file derives
// its own output path.
func (o *Orchestrator) processOne(ctx context.Context, path string) FileOutcome {
	opts := o.opts
	opts.OutPath = ""
	report, err := New(opts).Process(ctx, path)
	outcome := FileOutcome{Path: path, Report: report, Err: err}
	if report != nil {
		outcome.Output = report.Output
	}
	return outcome
}
