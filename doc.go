// Package sugarsurvey mines the history of a corpus of Rust repositories for
// the syntax constructs it classifies: trait definitions and bounds,
// closures, unsafe and async code, and transmute calls. Each repository is
// sampled once per calendar month and every sample is stored as a snapshot
// with one row per occurrence.
//
// # Pipeline
//
// A run has three stages per repository:
//
//  1. Sample: walk the main branch newest commit first and pick the most
//     recent commit at or before each month in the requested range. A commit
//     carries forward into the months after it that have no commit of their
//     own.
//
//  2. Classify: check the sample out, parse every non-test .rs file with
//     tree-sitter and run each registered analysis over the tree.
//
//  3. Commit: write the snapshot row and all of its occurrence rows in one
//     transaction. A failed commit leaves no trace of the snapshot.
//
// Repositories are processed in parallel; the months of one repository are
// processed in order, since they share one working tree. Files of one
// snapshot are parsed in parallel and buffered before the commit.
//
// # Usage
//
//	s, err := store.Open(store.DriverSQLite, "survey.db")
//	if err != nil { ... }
//	defer s.Close()
//
//	e, err := sugarsurvey.New(s, sugarsurvey.WithWorkers(8))
//	if err != nil { ... }
//	if err := e.Migrate(ctx); err != nil { ... }
//
//	stats, err := e.RunSnapshots(ctx, "download/source",
//		month.MustParse("2015-05"), month.MustParse("2024-12"))
//
//	rows, err := e.Query().TraitUsageByMonth(ctx, "Iterator")
//
// # Re-running
//
// A (repository, month) pair is stored at most once. A second run over the
// same range skips months that already have a snapshot without checking them
// out, so an interrupted or partially failed run can simply be repeated.
//
// # Errors
//
// Unreadable or unparsable files are skipped. A repository whose branch
// cannot be resolved or checked out is abandoned. A snapshot whose commit
// fails is rolled back. None of these stop the run; they are logged and
// counted in [RunStats].
package sugarsurvey
