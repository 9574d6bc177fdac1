package store

import (
	"fmt"
	"time"

	"github.com/jward/sugarsurvey/internal/month"
)

// Snapshot is one (repository, month) sample point.
type Snapshot struct {
	ID          int64        `db:"id" json:"id" yaml:"id"`
	Repository  string       `db:"repository" json:"repository" yaml:"repository"`
	Bucket      month.Bucket `db:"month_bucket" json:"month_bucket" yaml:"month_bucket"`
	Month       string       `db:"month" json:"month" yaml:"month"`
	CommitHash  string       `db:"commit_hash" json:"commit_hash" yaml:"commit_hash"`
	CommittedAt time.Time    `db:"committed_at" json:"committed_at" yaml:"committed_at"`
	RunID       string       `db:"run_id" json:"run_id" yaml:"run_id"`
}

// StoreError reports a failed store operation. Snapshot commits that fail are
// rolled back in full.
type StoreError struct {
	Op         string
	Repository string
	Bucket     month.Bucket
	Err        error
}

func (e *StoreError) Error() string {
	if e.Repository == "" {
		return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store: %s %s@%s: %v", e.Op, e.Repository, e.Bucket, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
