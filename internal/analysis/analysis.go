// Package analysis classifies Rust syntax into Occurrence records.
//
// Each analysis is a Descriptor pairing a schema bootstrap (Init) with a
// classifier (Classify). Classifiers are pure: they walk one parsed file and
// return a lazy, restartable sequence of occurrences without touching the store.
package analysis

import (
	"context"
	"iter"

	"github.com/jward/sugarsurvey/internal/month"
	"github.com/jward/sugarsurvey/internal/parser"
)

// Category tags the variant of an Occurrence.
type Category int

const (
	TraitDef Category = iota + 1
	ImplFor
	TypeImpl
	TypeDyn
	WhereClause
	Closure
	UnsafeRegion
	AsyncRegion
	Transmute
)

var categoryNames = map[Category]string{
	TraitDef:     "trait_def",
	ImplFor:      "impl_for",
	TypeImpl:     "type_impl",
	TypeDyn:      "type_dyn",
	WhereClause:  "where_clause",
	Closure:      "closure",
	UnsafeRegion: "unsafe",
	AsyncRegion:  "async",
	Transmute:    "transmute",
}

func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return "unknown"
}

// Position is where a positional impl/dyn trait type appears in a signature.
type Position int

const (
	PosArgument Position = iota + 1
	PosReturn
)

func (p Position) String() string {
	switch p {
	case PosArgument:
		return "argument"
	case PosReturn:
		return "return"
	}
	return "unknown"
}

// CallContext describes how a closure expression is used by its parent.
type CallContext int

const (
	// CallOther is any use that is not directly part of a call.
	CallOther CallContext = iota
	// CallCallee is a closure invoked on the spot: (|x| x + 1)(2).
	CallCallee
	// CallArgument is a closure passed straight to a call or method call.
	CallArgument
)

func (c CallContext) String() string {
	switch c {
	case CallCallee:
		return "callee"
	case CallArgument:
		return "argument"
	}
	return "other"
}

// RegionKind distinguishes function-level regions from block regions.
type RegionKind int

const (
	KindFunction RegionKind = iota + 1
	KindBlock
)

func (k RegionKind) String() string {
	if k == KindFunction {
		return "function"
	}
	return "block"
}

// Site locates an occurrence in a snapshot's source tree.
type Site struct {
	Path string
	Line int // 1-based
}

// Row is the persisted form of an Occurrence. The store prepends the
// snapshot id column.
type Row struct {
	Table   string
	Columns []string
	Values  []any
}

// Occurrence is one classified syntax event.
type Occurrence interface {
	Category() Category
	Site() Site
	Row() Row
}

// FileContext is the read-only context handed to every classifier.
type FileContext struct {
	Repository string
	Bucket     month.Bucket
	Path       string
}

// Schema executes DDL during migration. Statements may use the {{id}}
// placeholder for the dialect's auto-increment primary key column.
type Schema interface {
	ExecDDL(ctx context.Context, stmts ...string) error
}

// ClassifyFunc walks one parsed file.
type ClassifyFunc func(f *parser.File, fc FileContext) iter.Seq[Occurrence]

// Descriptor is one independent analysis.
type Descriptor struct {
	Name     string
	Tables   []string
	Init     func(ctx context.Context, s Schema) error
	Classify ClassifyFunc
}

func ddlInit(stmts ...string) func(context.Context, Schema) error {
	return func(ctx context.Context, s Schema) error {
		return s.ExecDDL(ctx, stmts...)
	}
}

func intOrNil(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func strOrNil(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func sitePath(f *parser.File, fc FileContext) string {
	if fc.Path != "" {
		return fc.Path
	}
	return f.Path
}
