package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jward/sugarsurvey/internal/analysis"
	"github.com/jward/sugarsurvey/internal/month"
)

// CommitSnapshot inserts the snapshot row and every buffered occurrence row
// within a single transaction and returns the snapshot id. On any failure the
// transaction is rolled back and a *StoreError is returned; no partial
// snapshot is ever visible.
func (s *Store) CommitSnapshot(ctx context.Context, batch *SnapshotBatch) (int64, error) {
	fail := func(op string, err error) (int64, error) {
		return 0, &StoreError{Op: op, Repository: batch.Repository, Bucket: batch.Bucket, Err: err}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fail("begin", err)
	}
	defer tx.Rollback()

	var snapshotID int64
	err = tx.QueryRowxContext(ctx, tx.Rebind(
		`INSERT INTO snapshots (repository, month_bucket, month, commit_hash, committed_at, run_id)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		batch.Repository, int(batch.Bucket), batch.Bucket.String(),
		batch.CommitHash, batch.CommittedAt.UTC(), batch.RunID,
	).Scan(&snapshotID)
	if err != nil {
		return fail("insert snapshot", err)
	}

	stmts := make(map[string]*sqlx.Stmt)
	for _, row := range batch.Rows() {
		key := row.Table + "(" + strings.Join(row.Columns, ",") + ")"
		stmt, ok := stmts[key]
		if !ok {
			stmt, err = tx.PreparexContext(ctx, tx.Rebind(insertSQL(row)))
			if err != nil {
				return fail("prepare "+row.Table, err)
			}
			defer stmt.Close()
			stmts[key] = stmt
		}
		args := make([]any, 0, len(row.Values)+1)
		args = append(args, snapshotID)
		args = append(args, row.Values...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fail("insert "+row.Table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fail("commit", err)
	}
	return snapshotID, nil
}

func insertSQL(row analysis.Row) string {
	return fmt.Sprintf("INSERT INTO %s (snapshot_id, %s) VALUES (%s)",
		row.Table, strings.Join(row.Columns, ", "), placeholderList(len(row.Columns)+1))
}

// HasSnapshot reports whether a snapshot for (repo, bucket) already exists.
func (s *Store) HasSnapshot(ctx context.Context, repo string, bucket month.Bucket) (bool, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, s.db.Rebind(
		`SELECT id FROM snapshots WHERE repository = ? AND month_bucket = ?`), repo, int(bucket))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &StoreError{Op: "has snapshot", Repository: repo, Bucket: bucket, Err: err}
	}
	return true, nil
}

// SnapshotsByRepository returns a repository's snapshots, newest month first.
// An empty repo returns every snapshot.
func (s *Store) SnapshotsByRepository(ctx context.Context, repo string) ([]Snapshot, error) {
	q := `SELECT id, repository, month_bucket, month, commit_hash, committed_at, run_id FROM snapshots`
	var args []any
	if repo != "" {
		q += ` WHERE repository = ?`
		args = append(args, repo)
	}
	q += ` ORDER BY repository, month_bucket DESC`

	var out []Snapshot
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("snapshots by repository: %w", err)
	}
	return out, nil
}

// CountRows returns the number of rows in table belonging to a snapshot, or
// to every snapshot when snapshotID is 0.
func (s *Store) CountRows(ctx context.Context, table string, snapshotID int64) (int, error) {
	if !validIdent(table) {
		return 0, fmt.Errorf("count rows: invalid table %q", table)
	}
	q := "SELECT COUNT(*) FROM " + table
	var args []any
	if snapshotID != 0 {
		q += " WHERE snapshot_id = ?"
		args = append(args, snapshotID)
	}
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(q), args...); err != nil {
		return 0, fmt.Errorf("count rows %s: %w", table, err)
	}
	return n, nil
}
