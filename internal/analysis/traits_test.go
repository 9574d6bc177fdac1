package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traitRows(t *testing.T, src string) []TraitUsage {
	t.Helper()
	var out []TraitUsage
	for _, o := range classify(t, Traits(), src) {
		tu, ok := o.(TraitUsage)
		require.True(t, ok, "unexpected occurrence %T", o)
		out = append(out, tu)
	}
	return out
}

func TestTraits_ScenarioA(t *testing.T) {
	t.Parallel()
	src := `trait Mock<A, B, C> {
    type Out<'a>;
}

fn f(x: impl Mock<A, B, C>) {}
`
	rows := traitRows(t, src)
	require.Len(t, rows, 2)

	def := rows[0]
	assert.Equal(t, TraitDef, def.Syntax)
	assert.Equal(t, "Mock", def.TraitName)
	assert.Equal(t, 3, def.GenericCount)
	assert.Equal(t, 1, def.ATCount)
	require.NotNil(t, def.GATCount)
	assert.Equal(t, 0, *def.GATCount)
	assert.Nil(t, def.Position)
	assert.Equal(t, 1, def.At.Line)

	use := rows[1]
	assert.Equal(t, TypeImpl, use.Syntax)
	require.NotNil(t, use.Position)
	assert.Equal(t, PosArgument, *use.Position)
	assert.Equal(t, "Mock", use.TraitName)
	assert.Equal(t, 3, use.GenericCount)
	assert.Equal(t, 0, use.ATCount)
	assert.Equal(t, 1, use.TraitBoundsCount)
	assert.Equal(t, 0, use.LifetimeBoundsCount)
	assert.Nil(t, use.GATCount)
	assert.Equal(t, 5, use.At.Line)
}

func TestTraits_GATNeedsTypeParameter(t *testing.T) {
	t.Parallel()
	rows := traitRows(t, `trait Lending {
    type Item<T>;
    type Plain;
    type Borrowed<'a>;
}
`)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].ATCount)
	assert.Equal(t, 1, *rows[0].GATCount)
	assert.Equal(t, 0, rows[0].GenericCount)
}

func TestTraits_LifetimeParamsAreNotGenerics(t *testing.T) {
	t.Parallel()
	rows := traitRows(t, "trait Parse<'a, T> {}\n")
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].GenericCount)
}

func TestTraits_ImplFor(t *testing.T) {
	t.Parallel()
	rows := traitRows(t, `struct Counter;

impl Iterator for Counter {
    type Item = u32;
    fn next(&mut self) -> Option<u32> { None }
}

impl Counter {
    fn new() -> Self { Counter }
}
`)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, ImplFor, r.Syntax)
	assert.Equal(t, "Iterator", r.TraitName)
	assert.Equal(t, 0, r.GenericCount)
	assert.Equal(t, 1, r.ATCount)
	assert.Equal(t, 0, *r.GATCount)
	assert.Equal(t, 3, r.At.Line)
}

func TestTraits_ImplForPathGenericsAndBindings(t *testing.T) {
	t.Parallel()
	rows := traitRows(t, "impl ops::Foo<u8, 'static, Output = i32> for X {}\n")
	require.Len(t, rows, 1)
	assert.Equal(t, "Foo", rows[0].TraitName)
	assert.Equal(t, 1, rows[0].GenericCount)
	assert.Equal(t, 1, rows[0].ATCount)
}

func TestTraits_ReturnDynWithLifetime(t *testing.T) {
	t.Parallel()
	rows := traitRows(t, "fn g() -> Box<dyn Display + Send + 'static> { todo!() }\n")
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, TypeDyn, r.Syntax)
	assert.Equal(t, PosReturn, *r.Position)
	assert.Equal(t, "Display", r.TraitName)
	assert.Equal(t, 2, r.TraitBoundsCount)
	assert.Equal(t, 1, r.LifetimeBoundsCount)
}

func TestTraits_FnSugarAndPositionsDoNotLeak(t *testing.T) {
	t.Parallel()
	rows := traitRows(t, `fn h(a: impl Fn(u8) -> u8, b: u32) -> impl Iterator<Item = u8> {
    let local: Box<dyn Debug> = Box::new(1);
    std::iter::empty()
}
`)
	require.Len(t, rows, 2)

	assert.Equal(t, TypeImpl, rows[0].Syntax)
	assert.Equal(t, PosArgument, *rows[0].Position)
	assert.Equal(t, "Fn", rows[0].TraitName)
	assert.Equal(t, 1, rows[0].GenericCount)
	assert.Equal(t, 1, rows[0].ATCount)

	assert.Equal(t, TypeImpl, rows[1].Syntax)
	assert.Equal(t, PosReturn, *rows[1].Position)
	assert.Equal(t, "Iterator", rows[1].TraitName)
	assert.Equal(t, 0, rows[1].GenericCount)
	assert.Equal(t, 1, rows[1].ATCount)
}

func TestTraits_NestedBoundKeepsPosition(t *testing.T) {
	t.Parallel()
	rows := traitRows(t, "fn n(x: impl Into<Box<dyn Error>>) {}\n")
	require.Len(t, rows, 2)
	assert.Equal(t, "Into", rows[0].TraitName)
	assert.Equal(t, TypeImpl, rows[0].Syntax)
	assert.Equal(t, 1, rows[0].GenericCount)
	assert.Equal(t, "Error", rows[1].TraitName)
	assert.Equal(t, TypeDyn, rows[1].Syntax)
	for _, r := range rows {
		assert.Equal(t, PosArgument, *r.Position)
	}
}

func TestTraits_ClosureParameterIsArgument(t *testing.T) {
	t.Parallel()
	rows := traitRows(t, "fn c() { let f = |x: &dyn Debug| x; }\n")
	require.Len(t, rows, 1)
	assert.Equal(t, TypeDyn, rows[0].Syntax)
	assert.Equal(t, PosArgument, *rows[0].Position)
	assert.Equal(t, "Debug", rows[0].TraitName)
}

func TestTraits_WhereClause(t *testing.T) {
	t.Parallel()
	rows := traitRows(t, `fn w<'a, T>(t: &'a T)
where
    T: Clone + Send + 'a,
    'a: 'static,
{
}
`)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, WhereClause, r.Syntax)
	assert.Nil(t, r.Position)
	assert.Equal(t, "Clone", r.TraitName)
	assert.Equal(t, 2, r.TraitBoundsCount)
	assert.Equal(t, 1, r.LifetimeBoundsCount)
}

func TestTraits_MaybeSizedIsSkippedButCounted(t *testing.T) {
	t.Parallel()
	rows := traitRows(t, "fn r<T>(x: &T) where T: ?Sized + Debug {}\n")
	require.Len(t, rows, 1)
	assert.Equal(t, "Debug", rows[0].TraitName)
	assert.Equal(t, 2, rows[0].TraitBoundsCount)
}

func TestTraits_SkipListNeverEmitted(t *testing.T) {
	t.Parallel()
	src := `fn s(a: impl Send + Sync, b: Box<dyn Copy>) -> impl Unpin { todo!() }
fn t<T>(x: T) where T: Sized {}
`
	for _, r := range traitRows(t, src) {
		assert.NotContains(t, []string{"Sync", "Send", "Copy", "Sized", "Unpin"}, r.TraitName)
	}
	assert.Empty(t, traitRows(t, src))
}

func TestTraits_SignatureInTraitBody(t *testing.T) {
	t.Parallel()
	rows := traitRows(t, `trait Source {
    fn read(&self) -> Box<dyn Iterator<Item = u8>>;
}
`)
	require.Len(t, rows, 2)
	assert.Equal(t, TraitDef, rows[0].Syntax)
	assert.Equal(t, TypeDyn, rows[1].Syntax)
	assert.Equal(t, PosReturn, *rows[1].Position)
	assert.Equal(t, 1, rows[1].ATCount)
}
