package sugarsurvey

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/sugarsurvey/internal/analysis"
	"github.com/jward/sugarsurvey/internal/month"
	"github.com/jward/sugarsurvey/internal/timeline"
)

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	require.NotNil(t, e.Store())
	require.NotNil(t, e.Query())
	assert.Equal(t, analysis.Default().Names(), e.Registry().Names())
	assert.NotEmpty(t, e.RunID())
	assert.Equal(t, 4, e.workers)
	assert.Equal(t, 4, e.fileWorkers)
	assert.Len(t, e.exclude, len(DefaultExclude))
}

func TestNew_Options(t *testing.T) {
	t.Parallel()
	reg, err := analysis.Default().Only("traits")
	require.NoError(t, err)

	log := logrus.New()
	e := newTestEngine(t,
		WithWorkers(0),
		WithFileWorkers(9),
		WithRegistry(reg),
		WithRunID("run-42"),
		WithLogger(log),
		WithExclude("src/generated/**"),
	)
	assert.Equal(t, 1, e.workers)
	assert.Equal(t, 9, e.fileWorkers)
	assert.Equal(t, []string{"traits"}, e.Registry().Names())
	assert.Equal(t, "run-42", e.RunID())
	assert.Same(t, log, e.log)
	assert.Len(t, e.exclude, len(DefaultExclude)+1)
}

func TestNew_RunIDsDiffer(t *testing.T) {
	t.Parallel()
	a := newTestEngine(t)
	b := newTestEngine(t)
	assert.NotEqual(t, a.RunID(), b.RunID())
}

func TestExcluded(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, WithExclude("src/generated/**"))

	excluded := []string{
		"tests/it.rs",
		"crates/core/tests/it.rs",
		"test/helpers.rs",
		"benches/speed.rs",
		"examples/demo.rs",
		"src/parser_test.rs",
		"parser_test.rs",
		"src/tests.rs",
		"src/generated/schema.rs",
	}
	for _, p := range excluded {
		assert.True(t, e.excluded(p), p)
	}

	kept := []string{
		"src/lib.rs",
		"src/testing.rs",
		"src/contest/mod.rs",
		"src/tests_util.rs",
		"build.rs",
	}
	for _, p := range kept {
		assert.False(t, e.excluded(p), p)
	}
}

func TestListFiles(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	root := t.TempDir()
	for _, name := range []string{
		"src/lib.rs",
		"src/b/mod.rs",
		"src/a.rs",
		"build.rs",
		"README.md",
		"tests/it.rs",
		"target/debug/build/out.rs",
		".cargo/config.rs",
		"benches/b.rs",
	} {
		writeFile(t, root, name, "fn main() {}\n")
	}

	files, err := e.listFiles(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"build.rs", "src/a.rs", "src/b/mod.rs", "src/lib.rs"}, files)
}

func TestDiscoverRepositories(t *testing.T) {
	t.Parallel()
	c := newCorpus(t)
	c.repo("zeta")
	c.repo("alpha")
	require.NoError(t, os.MkdirAll(filepath.Join(c.root, "notes"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(c.root, ".cache", ".git"), 0o755))
	writeFile(t, c.root, "README.md", "corpus\n")

	repos, err := DiscoverRepositories(c.root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(c.root, "alpha"), filepath.Join(c.root, "zeta")}, repos)
}

func TestDiscoverRepositories_MissingRoot(t *testing.T) {
	t.Parallel()
	_, err := DiscoverRepositories(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestRunSnapshots_InvalidRange(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	_, err := e.RunSnapshots(context.Background(), t.TempDir(), month.MustParse("2023-05"), month.MustParse("2023-01"))
	assert.ErrorIs(t, err, timeline.ErrInvalidRange)
}

func TestRunSnapshots_MissingRoot(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	_, err := e.RunSnapshots(context.Background(), filepath.Join(t.TempDir(), "absent"), month.MustParse("2023-01"), month.MustParse("2023-02"))
	assert.Error(t, err)
}

func TestRunSnapshots_Cancelled(t *testing.T) {
	t.Parallel()
	c := newCorpus(t)
	c.repo("alpha").commit("2023-01-10T12:00:00Z", map[string]string{"src/lib.rs": "fn f() {}\n"})

	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := e.RunSnapshots(ctx, c.root, month.MustParse("2023-01"), month.MustParse("2023-01"))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, stats)
	assert.Zero(t, stats.Snapshots)

	n, err := e.Store().CountRows(context.Background(), "snapshots", 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunStats_Merge(t *testing.T) {
	t.Parallel()
	a := newRunStats("r")
	a.Snapshots = 2
	a.Occurrences["traits"] = 3
	b := newRunStats("r")
	b.Snapshots = 1
	b.FilesFailed = 4
	b.Occurrences["traits"] = 1
	b.Occurrences["unsafe"] = 2

	a.merge(b)
	assert.Equal(t, 3, a.Snapshots)
	assert.Equal(t, 4, a.FilesFailed)
	assert.Equal(t, 6, a.TotalOccurrences())
	assert.Equal(t, []string{"traits", "unsafe"}, a.Analyses())
}

func TestClassifyFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "lib.rs", "fn apply(f: impl Fn(u8) -> u8) -> u8 {\n    f(1)\n}\n")

	out, err := ClassifyFile(context.Background(), filepath.Join(root, "lib.rs"), analysis.Default())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "traits", out[0].Analysis)
	assert.Equal(t, "type_impl", out[0].Category)
	assert.Equal(t, "traits", out[0].Table)
	assert.Equal(t, 1, out[0].Line)
	assert.Equal(t, "Fn", out[0].Fields["trait_name"])
	assert.Equal(t, "argument", out[0].Fields["position"])
}

func TestClassifyFile_SyntaxError(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "bad.rs", "fn broken( {\n")

	_, err := ClassifyFile(context.Background(), filepath.Join(root, "bad.rs"), analysis.Default())
	require.Error(t, err)
}
