package sugarsurvey

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jward/sugarsurvey/internal/analysis"
	"github.com/jward/sugarsurvey/internal/metrics"
	"github.com/jward/sugarsurvey/internal/month"
	"github.com/jward/sugarsurvey/internal/parser"
	"github.com/jward/sugarsurvey/internal/store"
	"github.com/jward/sugarsurvey/internal/timeline"
)

// DefaultExclude lists the glob patterns for test, bench and example code
// that is never classified. Patterns match slash-separated paths relative to
// the repository root.
var DefaultExclude = []string{
	"**/tests/**",
	"**/test/**",
	"**/benches/**",
	"**/examples/**",
	"**/*_test.rs",
	"**/tests.rs",
}

// skipDirs are pruned from the file walk along with hidden directories.
var skipDirs = map[string]bool{
	"target": true,
}

// Engine orchestrates a survey run: repository discovery, month sampling,
// per-file classification and one committed transaction per snapshot.
type Engine struct {
	store    *store.Store
	registry analysis.Registry
	log      logrus.FieldLogger
	metrics  *metrics.Recorder
	runID    string

	workers     int
	fileWorkers int

	patterns []string
	exclude  []glob.Glob
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets how many repositories are processed at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithFileWorkers sets how many files of one snapshot are parsed at once.
func WithFileWorkers(n int) Option {
	return func(e *Engine) {
		e.fileWorkers = n
	}
}

// WithLogger routes run logging to log.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithRegistry replaces the default analysis set.
func WithRegistry(reg analysis.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithExclude adds glob patterns to DefaultExclude.
func WithExclude(patterns ...string) Option {
	return func(e *Engine) {
		e.patterns = append(e.patterns, patterns...)
	}
}

// WithMetrics records run counters on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRunID tags every snapshot written by the run. A random UUID is used
// when unset.
func WithRunID(id string) Option {
	return func(e *Engine) {
		e.runID = id
	}
}

// New creates an Engine writing to s. The store must already be migrated for
// the engine's registry (see Engine.Migrate).
func New(s *store.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:       s,
		registry:    analysis.Default(),
		workers:     4,
		fileWorkers: 4,
		patterns:    append([]string(nil), DefaultExclude...),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		e.log = l
	}
	if e.runID == "" {
		e.runID = uuid.NewString()
	}
	e.workers = max(e.workers, 1)
	e.fileWorkers = max(e.fileWorkers, 1)

	for _, p := range e.patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("sugarsurvey: exclude pattern %q: %w", p, err)
		}
		e.exclude = append(e.exclude, g)
	}
	return e, nil
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Registry returns the analyses the engine runs.
func (e *Engine) Registry() analysis.Registry {
	return e.registry
}

// RunID returns the identifier stamped on snapshots written by this engine.
func (e *Engine) RunID() string {
	return e.runID
}

// Query returns a QueryBuilder over the engine's store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store, registry: e.registry}
}

// Migrate creates the snapshot table and every analysis table.
func (e *Engine) Migrate(ctx context.Context) error {
	return e.store.Migrate(ctx, e.registry)
}

// RunSnapshots samples every repository under repoRoot for each month in
// [start, end] and commits one snapshot per sampled month. Failures of single
// files, snapshots or repositories are logged and counted in the returned
// stats; only an unreadable repoRoot, an invalid range or a cancelled ctx
// produce an error.
func (e *Engine) RunSnapshots(ctx context.Context, repoRoot string, start, end month.Bucket) (*RunStats, error) {
	began := time.Now()
	stats := newRunStats(e.runID)
	if end < start {
		return stats, timeline.ErrInvalidRange
	}

	repos, err := DiscoverRepositories(repoRoot)
	if err != nil {
		return stats, err
	}
	e.log.WithFields(logrus.Fields{
		"run_id":       e.runID,
		"repositories": len(repos),
		"from":         start.String(),
		"to":           end.String(),
	}).Info("run started")

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, path := range repos {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rs := e.runRepository(ctx, path, start, end)
			mu.Lock()
			stats.merge(rs)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	stats.Duration = time.Since(began)
	e.log.WithFields(logrus.Fields{
		"run_id":            e.runID,
		"snapshots":         stats.Snapshots,
		"snapshots_skipped": stats.SnapshotsSkipped,
		"snapshots_failed":  stats.SnapshotsFailed,
		"files_failed":      stats.FilesFailed,
		"elapsed":           stats.Duration.Round(time.Millisecond).String(),
	}).Info("run finished")

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// RunSnapshots builds an Engine over s and runs it once.
func RunSnapshots(ctx context.Context, repoRoot string, start, end month.Bucket, s *store.Store, opts ...Option) (*RunStats, error) {
	e, err := New(s, opts...)
	if err != nil {
		return nil, err
	}
	return e.RunSnapshots(ctx, repoRoot, start, end)
}

// DiscoverRepositories returns the subdirectories of root that are git
// working copies, sorted by name. Hidden directories are ignored.
func DiscoverRepositories(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	var repos []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(root, entry.Name())
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
			continue
		}
		repos = append(repos, path)
	}
	return repos, nil
}

// runRepository walks one repository's timeline. The working tree is owned by
// this call for its whole duration and is restored before returning.
func (e *Engine) runRepository(ctx context.Context, path string, start, end month.Bucket) *RunStats {
	stats := newRunStats(e.runID)
	log := e.log.WithFields(logrus.Fields{
		"run_id":     e.runID,
		"repository": filepath.Base(path),
	})

	repo, err := timeline.Open(path)
	if err != nil {
		log.WithError(err).Error("open repository")
		stats.RepositoriesFailed++
		e.metrics.Repository(metrics.ResultFailed)
		return stats
	}

	touched := false
	defer func() {
		if !touched {
			return
		}
		if err := repo.Restore(); err != nil {
			log.WithError(err).Warn("restore working tree")
		}
	}()

	skip := func(b month.Bucket) bool {
		done, err := e.store.HasSnapshot(ctx, repo.Name, b)
		if err != nil {
			log.WithError(err).WithField("month", b.String()).Warn("check existing snapshot")
			return false
		}
		if done {
			stats.SnapshotsSkipped++
			e.metrics.Snapshot(metrics.ResultSkipped, 0)
			log.WithField("month", b.String()).Debug("snapshot exists")
		}
		return done
	}

	err = repo.Walk(ctx, start, end, timeline.WalkOptions{Skip: skip}, func(s timeline.Sample) error {
		touched = true
		e.snapshot(ctx, repo, s, stats)
		return ctx.Err()
	})
	switch {
	case err == nil:
		stats.Repositories++
		e.metrics.Repository(metrics.ResultOK)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.WithError(err).Warn("repository abandoned")
		stats.RepositoriesFailed++
		e.metrics.Repository(metrics.ResultFailed)
	default:
		log.WithError(err).Error("repository failed")
		stats.RepositoriesFailed++
		e.metrics.Repository(metrics.ResultFailed)
	}
	return stats
}

// snapshot classifies the checked-out tree and commits it as one snapshot.
func (e *Engine) snapshot(ctx context.Context, repo *timeline.Repository, s timeline.Sample, stats *RunStats) {
	log := e.log.WithFields(logrus.Fields{
		"run_id":     e.runID,
		"repository": repo.Name,
		"month":      s.Bucket.String(),
		"commit":     s.Hash.String(),
	})

	files, err := e.listFiles(repo.Path)
	if err != nil {
		log.WithError(err).Error("list files")
		stats.SnapshotsFailed++
		e.metrics.Snapshot(metrics.ResultFailed, 0)
		return
	}

	batch := store.NewSnapshotBatch(repo.Name, s.Bucket, s.Hash.String(), s.CommittedAt, e.runID)
	ok, failed := e.classifyFiles(ctx, log, repo.Name, s.Bucket, repo.Path, files, batch)
	stats.Files += ok
	stats.FilesFailed += failed
	if ctx.Err() != nil {
		return
	}

	began := time.Now()
	id, err := e.store.CommitSnapshot(ctx, batch)
	if err != nil {
		log.WithError(err).Error("commit snapshot")
		stats.SnapshotsFailed++
		e.metrics.Snapshot(metrics.ResultFailed, time.Since(began))
		return
	}
	e.metrics.Snapshot(metrics.ResultOK, time.Since(began))

	counts := batch.Counts()
	for name, n := range counts {
		stats.Occurrences[name] += n
		e.metrics.Occurrence(name, n)
	}
	stats.Snapshots++
	log.WithFields(logrus.Fields{
		"snapshot_id": id,
		"files":       ok,
		"rows":        batch.Len(),
	}).Info("snapshot committed")
}

// listFiles returns the classifiable source files under root as
// slash-separated relative paths in lexical order.
func (e *Engine) listFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !parser.IsSource(path) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if e.excluded(rel) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// excluded reports whether rel matches an exclude pattern. Patterns are tried
// against the path with and without a leading slash so that "**/tests/**"
// also covers a top-level tests directory.
func (e *Engine) excluded(rel string) bool {
	rooted := "/" + rel
	for _, g := range e.exclude {
		if g.Match(rel) || g.Match(rooted) {
			return true
		}
	}
	return false
}
