package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closureContexts(t *testing.T, src string) []CallContext {
	t.Helper()
	var out []CallContext
	for _, o := range classify(t, Closures(), src) {
		c, ok := o.(ClosureUse)
		require.True(t, ok)
		assert.Equal(t, Closure, c.Category())
		out = append(out, c.Context)
	}
	return out
}

func TestClosures_CallContexts(t *testing.T) {
	t.Parallel()
	got := closureContexts(t, `fn m(v: Vec<i32>) {
    (|x: i32| x + 1)(2);
    v.iter().map(|x| x * 2);
    let f = |y: i32| y;
    call(f, |z| z);
}
`)
	assert.Equal(t, []CallContext{CallCallee, CallArgument, CallOther, CallArgument}, got)
}

func TestClosures_ContextResetsForDescendants(t *testing.T) {
	t.Parallel()
	got := closureContexts(t, `fn n() {
    foo(|a| bar(|b| b));
    foo(|a| move |b| b);
    foo(Some(|c| c));
}
`)
	assert.Equal(t, []CallContext{
		CallArgument, CallArgument,
		CallArgument, CallOther,
		CallArgument,
	}, got)
}

func TestClosures_Site(t *testing.T) {
	t.Parallel()
	occs := classify(t, Closures(), "fn a() {\n    let f = || 1;\n}\n")
	require.Len(t, occs, 1)
	assert.Equal(t, Site{Path: "src/lib.rs", Line: 2}, occs[0].Site())
}
