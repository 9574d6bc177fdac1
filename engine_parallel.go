package sugarsurvey

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jward/sugarsurvey/internal/analysis"
	"github.com/jward/sugarsurvey/internal/metrics"
	"github.com/jward/sugarsurvey/internal/month"
	"github.com/jward/sugarsurvey/internal/parser"
	"github.com/jward/sugarsurvey/internal/store"
)

// fileJob is one file of a checked-out snapshot.
type fileJob struct {
	index int
	rel   string
	abs   string
}

// fileResult holds one file's occurrences grouped by analysis.
type fileResult struct {
	groups []occurrenceGroup
	err    error
}

type occurrenceGroup struct {
	analysis string
	occs     []analysis.Occurrence
}

// classifyFiles classifies the files of one snapshot in three phases:
//
//	Phase A (serial):   Build jobs in file order.
//	Phase B (parallel): Parse and classify via worker pool (each with own Parser).
//	Phase C (serial):   Add results to the batch in file order.
//
// Results are buffered per file index, so the batch rows come out in the same
// order for any number of workers. Returns the number of classified and
// skipped files.
func (e *Engine) classifyFiles(ctx context.Context, log logrus.FieldLogger, repoName string, bucket month.Bucket, root string, files []string, batch *store.SnapshotBatch) (ok, failed int) {
	if len(files) == 0 {
		return 0, 0
	}

	// ---- Phase A: Serial job preparation ----
	jobs := make(chan fileJob, len(files))
	for i, rel := range files {
		jobs <- fileJob{index: i, rel: rel, abs: filepath.Join(root, filepath.FromSlash(rel))}
	}
	close(jobs)

	// ---- Phase B: Parallel classification ----
	results := make([]fileResult, len(files))
	numWorkers := min(e.fileWorkers, len(files))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := parser.New()
			defer p.Close()
			for job := range jobs {
				if err := ctx.Err(); err != nil {
					results[job.index] = fileResult{err: err}
					continue
				}
				fc := analysis.FileContext{Repository: repoName, Bucket: bucket, Path: job.rel}
				results[job.index] = e.classifyFile(ctx, log, p, job, fc)
			}
		}()
	}
	wg.Wait()

	// ---- Phase C: Serial buffering ----
	for i, res := range results {
		if res.err != nil {
			failed++
			if !errors.Is(res.err, context.Canceled) && !errors.Is(res.err, context.DeadlineExceeded) {
				log.WithError(res.err).WithField("file", files[i]).Warn("skip file")
			}
			continue
		}
		ok++
		for _, g := range res.groups {
			batch.Add(g.analysis, g.occs)
		}
	}
	return ok, failed
}

// classifyFile parses one file and runs every analysis over it. A parse or
// read failure fails the file; a panicking analysis is logged and the other
// analyses' output is kept.
func (e *Engine) classifyFile(ctx context.Context, log logrus.FieldLogger, p *parser.Parser, job fileJob, fc analysis.FileContext) fileResult {
	began := time.Now()
	f, err := p.ParseFile(ctx, job.abs, job.rel)
	if err != nil {
		e.metrics.File(metrics.ResultFailed, time.Since(began))
		return fileResult{err: err}
	}
	defer f.Close()

	var res fileResult
	err = e.registry.ClassifyAll(f, fc, func(name string, occs []analysis.Occurrence) {
		res.groups = append(res.groups, occurrenceGroup{analysis: name, occs: occs})
	})
	if err != nil {
		log.WithError(err).WithField("file", job.rel).Error("analysis failed")
	}
	e.metrics.File(metrics.ResultOK, time.Since(began))
	return res
}
