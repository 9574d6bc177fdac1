// Package timeline reduces a repository's commit history to one representative
// commit per calendar month and drives checkouts of those commits.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/jward/sugarsurvey/internal/month"
)

// ErrInvalidRange is returned when the end month precedes the start month.
var ErrInvalidRange = errors.New("timeline: end month precedes start month")

// mainRefs lists the references tried, in order, to find the main branch.
var mainRefs = []plumbing.ReferenceName{
	"refs/heads/main",
	"refs/heads/master",
	"refs/remotes/origin/main",
	"refs/remotes/origin/master",
	plumbing.HEAD,
}

// RepositoryError reports a failure that abandons one repository.
type RepositoryError struct {
	Repository string
	Op         string
	Err        error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %s: %v", e.Repository, e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// Sample is the commit chosen to represent one month.
type Sample struct {
	Bucket      month.Bucket
	Hash        plumbing.Hash
	CommittedAt time.Time
}

// WalkOptions tunes Walk.
type WalkOptions struct {
	// Skip reports buckets that need no checkout or visit, typically because
	// they are already stored. A skipped bucket still consumes its commit.
	Skip func(month.Bucket) bool
}

// Repository is a git working copy whose history can be sampled.
type Repository struct {
	Name string
	Path string

	repo *git.Repository
	head *plumbing.Reference // HEAD as found at Open, unresolved
}

// Open opens the working copy at path.
func Open(path string) (*Repository, error) {
	name := filepath.Base(path)
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, &RepositoryError{Repository: name, Op: "open", Err: err}
	}
	head, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return nil, &RepositoryError{Repository: name, Op: "read HEAD", Err: err}
	}
	return &Repository{Name: name, Path: path, repo: repo, head: head}, nil
}

// MainBranch resolves the head commit of the main branch.
func (r *Repository) MainBranch() (plumbing.Hash, plumbing.ReferenceName, error) {
	for _, name := range mainRefs {
		ref, err := r.repo.Reference(name, true)
		if err != nil {
			continue
		}
		if _, err := r.repo.CommitObject(ref.Hash()); err != nil {
			continue
		}
		return ref.Hash(), name, nil
	}
	return plumbing.ZeroHash, "", &RepositoryError{Repository: r.Name, Op: "resolve main branch", Err: plumbing.ErrReferenceNotFound}
}

// Plan returns the samples for [start, end], newest month first, without
// touching the working tree.
func (r *Repository) Plan(ctx context.Context, start, end month.Bucket) ([]Sample, error) {
	var out []Sample
	err := r.sample(ctx, start, end, func(s Sample) error {
		out = append(out, s)
		return nil
	})
	return out, err
}

// Walk checks out each sample in turn, newest month first, and calls visit
// with the working tree at that commit. Checkouts are forced and detached;
// call Restore afterwards to return to the original head.
func (r *Repository) Walk(ctx context.Context, start, end month.Bucket, opts WalkOptions, visit func(Sample) error) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return &RepositoryError{Repository: r.Name, Op: "worktree", Err: err}
	}
	return r.sample(ctx, start, end, func(s Sample) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if opts.Skip != nil && opts.Skip(s.Bucket) {
			return nil
		}
		if err := wt.Checkout(&git.CheckoutOptions{Hash: s.Hash, Force: true}); err != nil {
			return &RepositoryError{Repository: r.Name, Op: "checkout " + s.Hash.String(), Err: err}
		}
		return visit(s)
	})
}

// Restore force-checks out the head that was current when the repository was
// opened.
func (r *Repository) Restore() error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return &RepositoryError{Repository: r.Name, Op: "worktree", Err: err}
	}
	opts := &git.CheckoutOptions{Force: true}
	if r.head.Type() == plumbing.SymbolicReference {
		opts.Branch = r.head.Target()
	} else {
		opts.Hash = r.head.Hash()
	}
	if err := wt.Checkout(opts); err != nil {
		return &RepositoryError{Repository: r.Name, Op: "restore", Err: err}
	}
	return nil
}

// sample walks history from the main branch head in committer-time order and
// emits one sample per bucket from end down to start. A commit fills every
// bucket from the current target down to its own month; newer commits in a
// month already filled are skipped. History running out before start ends the
// walk without error.
func (r *Repository) sample(ctx context.Context, start, end month.Bucket, emit func(Sample) error) error {
	if end < start {
		return ErrInvalidRange
	}
	from, _, err := r.MainBranch()
	if err != nil {
		return err
	}
	commits, err := r.repo.Log(&git.LogOptions{From: from, Order: git.LogOrderCommitterTime})
	if err != nil {
		return &RepositoryError{Repository: r.Name, Op: "log", Err: err}
	}
	defer commits.Close()

	target := end
	for target >= start {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := commits.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &RepositoryError{Repository: r.Name, Op: "log", Err: err}
		}
		committed := committerTime(c)
		for b := month.Of(committed); b <= target && target >= start; target-- {
			if err := emit(Sample{Bucket: target, Hash: c.Hash, CommittedAt: committed}); err != nil {
				return err
			}
		}
	}
	return nil
}

func committerTime(c *object.Commit) time.Time {
	return c.Committer.When.UTC()
}
