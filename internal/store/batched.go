package store

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jward/sugarsurvey/internal/analysis"
	"github.com/jward/sugarsurvey/internal/month"
)

// SnapshotBatch buffers the rows of one snapshot in memory until
// CommitSnapshot writes them in a single transaction.
//
// Thread safety: the mutex protects row appends and counters, so parallel
// file workers may add to the same batch.
type SnapshotBatch struct {
	Repository  string
	Bucket      month.Bucket
	CommitHash  string
	CommittedAt time.Time
	RunID       string

	mu     sync.Mutex
	rows   []analysis.Row
	counts map[string]int
}

// NewSnapshotBatch creates an empty batch for one snapshot.
func NewSnapshotBatch(repo string, bucket month.Bucket, commit string, committedAt time.Time, runID string) *SnapshotBatch {
	return &SnapshotBatch{
		Repository:  repo,
		Bucket:      bucket,
		CommitHash:  commit,
		CommittedAt: committedAt,
		RunID:       runID,
		counts:      make(map[string]int),
	}
}

// Add buffers the occurrences one analysis produced for one file, keeping
// their order.
func (b *SnapshotBatch) Add(analysisName string, occs []analysis.Occurrence) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range occs {
		b.rows = append(b.rows, o.Row())
	}
	b.counts[analysisName] += len(occs)
}

// Len returns the number of buffered rows.
func (b *SnapshotBatch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rows)
}

// Counts returns the buffered occurrence count per analysis.
func (b *SnapshotBatch) Counts() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.counts)
}

// Rows returns a copy of the buffered rows.
func (b *SnapshotBatch) Rows() []analysis.Row {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.rows)
}
