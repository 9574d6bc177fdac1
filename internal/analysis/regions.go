package analysis

import (
	"fmt"
	"iter"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/sugarsurvey/internal/parser"
)

// Region is one unsafe or async function or block.
type Region struct {
	Cat        Category // UnsafeRegion or AsyncRegion
	Kind       RegionKind
	BlockCount *int // set for KindFunction only
	StartLine  int
	EndLine    int
	Outermost  bool
	Qualified  bool // function carries the unsafe/async qualifier
	Path       string
}

func (r Region) Category() Category { return r.Cat }
func (r Region) Site() Site         { return Site{Path: r.Path, Line: r.StartLine} }

func (r Region) Row() Row {
	table := "unsafe_code"
	if r.Cat == AsyncRegion {
		table = "async_code"
	}
	return Row{
		Table: table,
		Columns: []string{
			"region_type", "block_count", "outermost", "qualified",
			"file_name", "start_line", "end_line",
		},
		Values: []any{
			r.Kind.String(), intOrNil(r.BlockCount), r.Outermost, r.Qualified,
			r.Path, r.StartLine, r.EndLine,
		},
	}
}

// TransmuteCall is one call to mem::transmute or mem::transmute_copy.
type TransmuteCall struct {
	Function string
	FromType *string
	ToType   *string
	At       Site
}

func (t TransmuteCall) Category() Category { return Transmute }
func (t TransmuteCall) Site() Site         { return t.At }

func (t TransmuteCall) Row() Row {
	return Row{
		Table:   "transmutes",
		Columns: []string{"function", "from_type", "to_type", "file_name", "line_number"},
		Values:  []any{t.Function, strOrNil(t.FromType), strOrNil(t.ToType), t.At.Path, t.At.Line},
	}
}

const regionDDL = `CREATE TABLE IF NOT EXISTS %s (
	id {{id}},
	snapshot_id BIGINT NOT NULL REFERENCES snapshots(id),
	region_type TEXT NOT NULL,
	block_count INTEGER,
	outermost BOOLEAN NOT NULL,
	qualified BOOLEAN NOT NULL,
	file_name TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL
)`

const transmutesDDL = `CREATE TABLE IF NOT EXISTS transmutes (
	id {{id}},
	snapshot_id BIGINT NOT NULL REFERENCES snapshots(id),
	function TEXT NOT NULL,
	from_type TEXT,
	to_type TEXT,
	file_name TEXT NOT NULL,
	line_number INTEGER NOT NULL
)`

type regionSpec struct {
	cat       Category
	block     string // block node kind
	qualifier string // function modifier token
	transmute bool
}

var (
	unsafeSpec = regionSpec{cat: UnsafeRegion, block: "unsafe_block", qualifier: "unsafe", transmute: true}
	asyncSpec  = regionSpec{cat: AsyncRegion, block: "async_block", qualifier: "async"}
)

// Unsafe classifies unsafe functions and blocks, and transmute calls.
func Unsafe() Descriptor {
	return Descriptor{
		Name:   "unsafe",
		Tables: []string{"unsafe_code", "transmutes"},
		Init: ddlInit(
			fmt.Sprintf(regionDDL, "unsafe_code"),
			`CREATE INDEX IF NOT EXISTS idx_unsafe_code_snapshot ON unsafe_code(snapshot_id)`,
			transmutesDDL,
			`CREATE INDEX IF NOT EXISTS idx_transmutes_snapshot ON transmutes(snapshot_id)`,
			`CREATE INDEX IF NOT EXISTS idx_transmutes_to_type ON transmutes(to_type)`,
		),
		Classify: regionClassifier(unsafeSpec),
	}
}

// Async classifies async functions and blocks.
func Async() Descriptor {
	return Descriptor{
		Name:   "async",
		Tables: []string{"async_code"},
		Init: ddlInit(
			fmt.Sprintf(regionDDL, "async_code"),
			`CREATE INDEX IF NOT EXISTS idx_async_code_snapshot ON async_code(snapshot_id)`,
		),
		Classify: regionClassifier(asyncSpec),
	}
}

func regionClassifier(spec regionSpec) ClassifyFunc {
	return func(f *parser.File, fc FileContext) iter.Seq[Occurrence] {
		return func(yield func(Occurrence) bool) {
			w := &regionWalker{spec: spec, f: f, path: sitePath(f, fc), yield: yield}
			w.walk(f.Root(), false)
		}
	}
}

type regionWalker struct {
	spec  regionSpec
	f     *parser.File
	path  string
	yield func(Occurrence) bool
	done  bool
}

func (w *regionWalker) emit(o Occurrence) {
	if w.done {
		return
	}
	if !w.yield(o) {
		w.done = true
	}
}

// walk visits n in post-order and returns the number of region blocks in its
// subtree, not counting blocks inside nested function items. inside reports
// whether n is enclosed by an open region of the same category.
func (w *regionWalker) walk(n *sitter.Node, inside bool) int {
	if w.done || n == nil {
		return 0
	}
	switch n.Type() {
	case "function_item":
		qualified := hasToken(n, w.spec.qualifier)
		count := w.walk(n.ChildByFieldName("body"), qualified)
		if qualified || count > 0 {
			c := count
			w.emit(Region{
				Cat:        w.spec.cat,
				Kind:       KindFunction,
				BlockCount: &c,
				StartLine:  startLine(n),
				EndLine:    endLine(n),
				Outermost:  true,
				Qualified:  qualified,
				Path:       w.path,
			})
		}
		return 0
	case w.spec.block:
		count := w.walkChildren(n, true)
		w.emit(Region{
			Cat:       w.spec.cat,
			Kind:      KindBlock,
			StartLine: startLine(n),
			EndLine:   endLine(n),
			Outermost: !inside,
			Path:      w.path,
		})
		return count + 1
	case "call_expression":
		count := w.walkChildren(n, inside)
		if w.spec.transmute {
			if t, ok := w.transmute(n); ok {
				w.emit(t)
			}
		}
		return count
	}
	return w.walkChildren(n, inside)
}

func (w *regionWalker) walkChildren(n *sitter.Node, inside bool) int {
	total := 0
	for _, c := range namedChildren(n) {
		if w.done {
			break
		}
		total += w.walk(c, inside)
	}
	return total
}

func (w *regionWalker) transmute(call *sitter.Node) (TransmuteCall, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return TransmuteCall{}, false
	}
	var targs *sitter.Node
	if fn.Type() == "generic_function" {
		targs = fn.ChildByFieldName("type_arguments")
		fn = fn.ChildByFieldName("function")
		if fn == nil {
			return TransmuteCall{}, false
		}
	}
	var name string
	switch fn.Type() {
	case "identifier":
		name = w.f.Text(fn)
	case "scoped_identifier":
		name = w.f.Text(fn.ChildByFieldName("name"))
	default:
		return TransmuteCall{}, false
	}
	if name != "transmute" && name != "transmute_copy" {
		return TransmuteCall{}, false
	}
	t := TransmuteCall{Function: name, At: Site{Path: w.path, Line: startLine(call)}}
	args := namedChildren(targs)
	if len(args) > 0 {
		from := w.f.Text(args[0])
		t.FromType = &from
	}
	if len(args) > 1 {
		to := w.f.Text(args[1])
		t.ToType = &to
	}
	return t, true
}
