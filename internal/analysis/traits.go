package analysis

import (
	"iter"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/sugarsurvey/internal/parser"
)

// skippedTraits are marker and auto traits excluded from trait_name rows.
// They still count toward the bound totals of the construct they appear in.
var skippedTraits = map[string]bool{
	"Sync":  true,
	"Send":  true,
	"Copy":  true,
	"Sized": true,
	"Unpin": true,
}

// TraitUsage is one trait definition, implementation or bound.
type TraitUsage struct {
	Syntax              Category
	Position            *Position // set for TypeImpl and TypeDyn only
	GenericCount        int
	ATCount             int
	GATCount            *int // set for TraitDef and ImplFor only
	TraitName           string
	TraitBoundsCount    int
	LifetimeBoundsCount int
	At                  Site
}

func (t TraitUsage) Category() Category { return t.Syntax }
func (t TraitUsage) Site() Site         { return t.At }

func (t TraitUsage) Row() Row {
	var pos any
	if t.Position != nil {
		pos = t.Position.String()
	}
	return Row{
		Table: "traits",
		Columns: []string{
			"syntax", "position", "generic_count", "at_count", "gat_count",
			"trait_name", "trait_bounds_count", "lifetime_bounds_count",
			"file_name", "line_number",
		},
		Values: []any{
			t.Syntax.String(), pos, t.GenericCount, t.ATCount, intOrNil(t.GATCount),
			t.TraitName, t.TraitBoundsCount, t.LifetimeBoundsCount,
			t.At.Path, t.At.Line,
		},
	}
}

const traitsDDL = `CREATE TABLE IF NOT EXISTS traits (
	id {{id}},
	snapshot_id BIGINT NOT NULL REFERENCES snapshots(id),
	syntax TEXT NOT NULL,
	position TEXT,
	generic_count INTEGER NOT NULL,
	at_count INTEGER NOT NULL,
	gat_count INTEGER,
	trait_name TEXT NOT NULL,
	trait_bounds_count INTEGER NOT NULL,
	lifetime_bounds_count INTEGER NOT NULL,
	file_name TEXT NOT NULL,
	line_number INTEGER NOT NULL
)`

// Traits classifies trait definitions, impls, positional impl/dyn types and
// where-clause bounds.
func Traits() Descriptor {
	return Descriptor{
		Name:   "traits",
		Tables: []string{"traits"},
		Init: ddlInit(
			traitsDDL,
			`CREATE INDEX IF NOT EXISTS idx_traits_snapshot ON traits(snapshot_id)`,
			`CREATE INDEX IF NOT EXISTS idx_traits_name ON traits(trait_name)`,
		),
		Classify: classifyTraits,
	}
}

func classifyTraits(f *parser.File, fc FileContext) iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		w := &traitWalker{f: f, path: sitePath(f, fc), yield: yield}
		w.visit(f.Root(), nil)
	}
}

type traitWalker struct {
	f     *parser.File
	path  string
	yield func(Occurrence) bool
	done  bool
}

func (w *traitWalker) emit(t TraitUsage) {
	if w.done || skippedTraits[t.TraitName] {
		return
	}
	if !w.yield(t) {
		w.done = true
	}
}

// visit walks n. pos is non-nil only inside a parameter or return type and is
// never mutated, so sibling branches cannot observe each other's position.
func (w *traitWalker) visit(n *sitter.Node, pos *Position) {
	if w.done || n == nil {
		return
	}
	switch n.Type() {
	case "trait_item":
		w.traitDef(n)
		w.visitChildren(n, nil)
		return
	case "impl_item":
		w.implFor(n)
		w.visitChildren(n, nil)
		return
	case "function_item", "function_signature_item":
		w.signature(n, "parameters")
		return
	case "closure_expression":
		w.signature(n, "parameters")
		return
	case "where_predicate":
		w.wherePredicate(n)
		w.visitChildren(n, nil)
		return
	case "abstract_type", "dynamic_type":
		if pos != nil {
			w.bounds(boundCategory(n), flattenBounds(n), *pos)
			return
		}
	case "bounded_type":
		// Older grammars parse `impl A + B` as bounded_type(abstract_type(A), B).
		if pos != nil {
			elems := flattenBounded(n)
			if len(elems) > 0 && (elems[0].Type() == "abstract_type" || elems[0].Type() == "dynamic_type") {
				merged := append(flattenBounds(elems[0]), elems[1:]...)
				w.bounds(boundCategory(elems[0]), merged, *pos)
				return
			}
		}
	}
	w.visitChildren(n, pos)
}

func (w *traitWalker) visitChildren(n *sitter.Node, pos *Position) {
	for _, c := range namedChildren(n) {
		if w.done {
			return
		}
		w.visit(c, pos)
	}
}

// signature walks a function or closure, giving parameter types the Argument
// position and the return type the Return position.
func (w *traitWalker) signature(n *sitter.Node, paramsField string) {
	params := n.ChildByFieldName(paramsField)
	ret := n.ChildByFieldName("return_type")
	for _, c := range namedChildren(n) {
		switch {
		case sameNode(c, params):
			w.parameters(c, PosArgument)
		case sameNode(c, ret):
			p := PosReturn
			w.visit(c, &p)
		default:
			w.visit(c, nil)
		}
	}
}

func (w *traitWalker) parameters(n *sitter.Node, pos Position) {
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "parameter":
			w.visit(c.ChildByFieldName("pattern"), nil)
			w.visit(c.ChildByFieldName("type"), &pos)
		case "self_parameter", "variadic_parameter", "attribute_item":
		default:
			// Untyped closure parameters are patterns; bare types appear in
			// function pointer and Fn sugar parameter lists.
			if isTypeNode(c) {
				w.visit(c, &pos)
			} else {
				w.visit(c, nil)
			}
		}
	}
}

func (w *traitWalker) traitDef(n *sitter.Node) {
	name := w.f.Text(n.ChildByFieldName("name"))
	generics := countTypeParams(n.ChildByFieldName("type_parameters"))
	at, gat := 0, 0
	for _, item := range namedChildren(n.ChildByFieldName("body")) {
		if item.Type() != "associated_type" {
			continue
		}
		at++
		if hasTypeOrConstParam(item.ChildByFieldName("type_parameters")) {
			gat++
		}
	}
	w.emit(TraitUsage{
		Syntax:       TraitDef,
		GenericCount: generics,
		ATCount:      at,
		GATCount:     &gat,
		TraitName:    name,
		At:           Site{Path: w.path, Line: startLine(n)},
	})
}

func (w *traitWalker) implFor(n *sitter.Node) {
	trait := n.ChildByFieldName("trait")
	if trait == nil {
		return
	}
	name, generics, bindings, ok := w.tracePath(trait)
	if !ok {
		return
	}
	items, gat := 0, 0
	for _, item := range namedChildren(n.ChildByFieldName("body")) {
		if item.Type() != "type_item" {
			continue
		}
		items++
		if hasTypeOrConstParam(item.ChildByFieldName("type_parameters")) {
			gat++
		}
	}
	w.emit(TraitUsage{
		Syntax:       ImplFor,
		GenericCount: generics,
		ATCount:      items + bindings,
		GATCount:     &gat,
		TraitName:    name,
		At:           Site{Path: w.path, Line: startLine(trait)},
	})
}

func (w *traitWalker) wherePredicate(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	if left == nil || left.Type() == "lifetime" {
		return
	}
	bounds := n.ChildByFieldName("bounds")
	if bounds == nil {
		return
	}
	w.boundList(WhereClause, nil, namedChildren(bounds))
}

// bounds emits one positional row per trait bound of an impl/dyn type and then
// classifies nested impl/dyn types in the bounds' arguments with the same position.
func (w *traitWalker) bounds(cat Category, elems []*sitter.Node, pos Position) {
	w.boundList(cat, &pos, elems)
	for _, e := range elems {
		if w.done {
			return
		}
		w.visitChildren(e, &pos)
	}
}

func (w *traitWalker) boundList(cat Category, pos *Position, elems []*sitter.Node) {
	total, lifetimes := 0, 0
	for _, e := range elems {
		switch e.Type() {
		case "lifetime":
			lifetimes++
			total++
		case "use_bounds":
		default:
			total++
		}
	}
	traitBounds := total - lifetimes
	for _, e := range elems {
		if e.Type() == "lifetime" {
			continue
		}
		name, generics, assoc, ok := w.tracePath(e)
		if !ok {
			continue
		}
		w.emit(TraitUsage{
			Syntax:              cat,
			Position:            pos,
			GenericCount:        generics,
			ATCount:             assoc,
			TraitName:           name,
			TraitBoundsCount:    traitBounds,
			LifetimeBoundsCount: lifetimes,
			At:                  Site{Path: w.path, Line: startLine(e)},
		})
	}
}

// tracePath resolves a trait path to its last segment and counts its generic
// arguments and associated type bindings.
func (w *traitWalker) tracePath(n *sitter.Node) (name string, generics, assoc int, ok bool) {
	if n == nil {
		return "", 0, 0, false
	}
	switch n.Type() {
	case "type_identifier":
		return w.f.Text(n), 0, 0, true
	case "scoped_type_identifier":
		return w.f.Text(n.ChildByFieldName("name")), 0, 0, true
	case "generic_type":
		name, _, _, ok = w.tracePath(n.ChildByFieldName("type"))
		if !ok {
			return "", 0, 0, false
		}
		generics, assoc = countTypeArguments(n.ChildByFieldName("type_arguments"))
		return name, generics, assoc, true
	case "function_type":
		trait := n.ChildByFieldName("trait")
		if trait == nil {
			return "", 0, 0, false
		}
		name, _, _, ok = w.tracePath(trait)
		if !ok {
			return "", 0, 0, false
		}
		generics = len(namedChildren(n.ChildByFieldName("parameters")))
		if n.ChildByFieldName("return_type") != nil {
			assoc = 1
		}
		return name, generics, assoc, true
	case "higher_ranked_trait_bound":
		return w.tracePath(n.ChildByFieldName("type"))
	case "removed_trait_bound":
		if kids := namedChildren(n); len(kids) > 0 {
			return w.tracePath(kids[0])
		}
	}
	return "", 0, 0, false
}

func countTypeArguments(args *sitter.Node) (generics, assoc int) {
	for _, a := range namedChildren(args) {
		switch a.Type() {
		case "type_binding":
			assoc++
		case "lifetime", "block", "trait_bounds",
			"integer_literal", "float_literal", "string_literal", "raw_string_literal",
			"char_literal", "boolean_literal", "negative_literal":
		default:
			generics++
		}
	}
	return generics, assoc
}

func countTypeParams(params *sitter.Node) int {
	n := 0
	for _, p := range namedChildren(params) {
		switch p.Type() {
		case "type_identifier", "constrained_type_parameter", "optional_type_parameter", "type_parameter":
			n++
		}
	}
	return n
}

func hasTypeOrConstParam(params *sitter.Node) bool {
	for _, p := range namedChildren(params) {
		switch p.Type() {
		case "type_identifier", "constrained_type_parameter", "optional_type_parameter",
			"type_parameter", "const_parameter":
			return true
		}
	}
	return false
}

func boundCategory(n *sitter.Node) Category {
	if n.Type() == "dynamic_type" {
		return TypeDyn
	}
	return TypeImpl
}

// flattenBounds returns the bound elements of an abstract_type or dynamic_type.
func flattenBounds(n *sitter.Node) []*sitter.Node {
	trait := n.ChildByFieldName("trait")
	if trait == nil {
		kids := namedChildren(n)
		if len(kids) == 0 {
			return nil
		}
		trait = kids[len(kids)-1]
	}
	if trait.Type() == "bounded_type" {
		return flattenBounded(trait)
	}
	return []*sitter.Node{trait}
}

func flattenBounded(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, c := range namedChildren(n) {
		if c.Type() == "bounded_type" {
			out = append(out, flattenBounded(c)...)
			continue
		}
		out = append(out, c)
	}
	return out
}

func isTypeNode(n *sitter.Node) bool {
	switch n.Type() {
	case "type_identifier", "scoped_type_identifier", "generic_type", "reference_type",
		"pointer_type", "array_type", "tuple_type", "function_type", "abstract_type",
		"dynamic_type", "bounded_type", "primitive_type", "unit_type", "never_type":
		return true
	}
	return false
}
