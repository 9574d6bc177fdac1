package sugarsurvey

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/jward/sugarsurvey/internal/store"
)

// corpus is a temp directory holding one git repository per subdirectory.
type corpus struct {
	t    testing.TB
	root string
}

func newCorpus(t testing.TB) *corpus {
	t.Helper()
	return &corpus{t: t, root: t.TempDir()}
}

// repo initialises an empty repository named name.
func (c *corpus) repo(name string) *fixtureRepo {
	c.t.Helper()
	dir := filepath.Join(c.root, name)
	r, err := git.PlainInit(dir, false)
	require.NoError(c.t, err)
	return &fixtureRepo{t: c.t, dir: dir, repo: r}
}

type fixtureRepo struct {
	t    testing.TB
	dir  string
	repo *git.Repository
}

// commit writes files and commits them with the given committer date.
func (r *fixtureRepo) commit(when string, files map[string]string) {
	r.t.Helper()
	ts, err := time.Parse(time.RFC3339, when)
	require.NoError(r.t, err)

	wt, err := r.repo.Worktree()
	require.NoError(r.t, err)
	for name, content := range files {
		path := filepath.Join(r.dir, filepath.FromSlash(name))
		require.NoError(r.t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(r.t, os.WriteFile(path, []byte(content), 0o644))
		_, err := wt.Add(name)
		require.NoError(r.t, err)
	}
	sig := &object.Signature{Name: "Test", Email: "test@example.com", When: ts}
	_, err = wt.Commit("commit at "+when, &git.CommitOptions{Author: sig, Committer: sig, AllowEmptyCommits: true})
	require.NoError(r.t, err)
}


func writeFile(t testing.TB, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestEngine(t testing.TB, opts ...Option) *Engine {
	t.Helper()
	e, err := New(newTestStore(t), opts...)
	require.NoError(t, err)
	require.NoError(t, e.Migrate(context.Background()))
	return e
}

func (c *corpus) repoFile(repo, name string) string {
	c.t.Helper()
	b, err := os.ReadFile(filepath.Join(c.root, repo, filepath.FromSlash(name)))
	require.NoError(c.t, err)
	return string(b)
}
