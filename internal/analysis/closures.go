package analysis

import (
	"iter"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/sugarsurvey/internal/parser"
)

// ClosureUse is one closure expression.
type ClosureUse struct {
	Context CallContext
	At      Site
}

func (c ClosureUse) Category() Category { return Closure }
func (c ClosureUse) Site() Site         { return c.At }

func (c ClosureUse) Row() Row {
	return Row{
		Table:   "closures",
		Columns: []string{"call_context", "is_try_like", "file_name", "line_number"},
		Values:  []any{c.Context.String(), c.Context == CallCallee, c.At.Path, c.At.Line},
	}
}

const closuresDDL = `CREATE TABLE IF NOT EXISTS closures (
	id {{id}},
	snapshot_id BIGINT NOT NULL REFERENCES snapshots(id),
	call_context TEXT NOT NULL,
	is_try_like BOOLEAN NOT NULL,
	file_name TEXT NOT NULL,
	line_number INTEGER NOT NULL
)`

// Closures classifies closure expressions by how their parent uses them.
func Closures() Descriptor {
	return Descriptor{
		Name:   "closures",
		Tables: []string{"closures"},
		Init: ddlInit(
			closuresDDL,
			`CREATE INDEX IF NOT EXISTS idx_closures_snapshot ON closures(snapshot_id)`,
		),
		Classify: func(f *parser.File, fc FileContext) iter.Seq[Occurrence] {
			return func(yield func(Occurrence) bool) {
				w := &closureWalker{path: sitePath(f, fc), yield: yield}
				w.visit(f.Root(), CallOther)
			}
		},
	}
}

type closureWalker struct {
	path  string
	yield func(Occurrence) bool
	done  bool
}

// visit walks n with the context its parent gave it. Only parentheses pass the
// context through; every other descendant starts again from CallOther.
func (w *closureWalker) visit(n *sitter.Node, ctx CallContext) {
	if w.done || n == nil {
		return
	}
	switch n.Type() {
	case "closure_expression":
		if !w.yield(ClosureUse{Context: ctx, At: Site{Path: w.path, Line: startLine(n)}}) {
			w.done = true
			return
		}
	case "parenthesized_expression":
		for _, c := range namedChildren(n) {
			w.visit(c, ctx)
		}
		return
	case "call_expression":
		fn := n.ChildByFieldName("function")
		args := n.ChildByFieldName("arguments")
		for _, c := range namedChildren(n) {
			switch {
			case sameNode(c, fn):
				w.visit(c, CallCallee)
			case sameNode(c, args):
				for _, a := range namedChildren(c) {
					w.visit(a, CallArgument)
				}
			default:
				w.visit(c, CallOther)
			}
		}
		return
	}
	for _, c := range namedChildren(n) {
		w.visit(c, CallOther)
	}
}
