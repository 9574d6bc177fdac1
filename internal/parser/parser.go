// Package parser wraps tree-sitter's Rust grammar. A Parser turns source bytes
// into a File or reports why it could not; callers never see partial trees.
package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// extToLanguage maps file extensions to canonical language names.
var extToLanguage = map[string]string{
	".rs": "rust",
}

var (
	rustGrammar *sitter.Language
	grammarOnce sync.Once
)

func grammar() *sitter.Language {
	grammarOnce.Do(func() {
		rustGrammar = rust.GetLanguage()
	})
	return rustGrammar
}

// IsSource reports whether path has a Rust source extension.
func IsSource(path string) bool {
	_, ok := extToLanguage[strings.ToLower(filepath.Ext(path))]
	return ok
}

// File is a successfully parsed source file. The tree stays valid until Close.
type File struct {
	Path   string
	Source []byte
	tree   *sitter.Tree
}

// Root returns the root node of the syntax tree.
func (f *File) Root() *sitter.Node {
	return f.tree.RootNode()
}

// Text returns the source text spanned by n.
func (f *File) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(f.Source)
}

// Close releases the tree.
func (f *File) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}

// Parser parses Rust source. A Parser is not safe for concurrent use; give each
// worker its own.
type Parser struct {
	p *sitter.Parser
}

// New returns a Parser configured for Rust.
func New() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(grammar())
	return &Parser{p: p}
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	p.p.Close()
}

// ParseFile reads path from disk and parses it. label is the path recorded on
// the File (typically relative to the repository root); when empty, path is used.
func (p *Parser) ParseFile(ctx context.Context, path, label string) (*File, error) {
	if label == "" {
		label = path
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileReadError{Path: label, Err: err}
	}
	return p.Parse(ctx, label, src)
}

// Parse parses src. A tree containing error or missing nodes is reported as a
// *ParseError pointing at the first offending node.
func (p *Parser) Parse(ctx context.Context, path string, src []byte) (*File, error) {
	tree, err := p.p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	root := tree.RootNode()
	if root.HasError() {
		perr := &ParseError{Path: path, Line: 1, Column: 1, Message: "syntax error"}
		if bad := firstError(root); bad != nil {
			pt := bad.StartPoint()
			perr.Line = int(pt.Row) + 1
			perr.Column = int(pt.Column) + 1
			if bad.IsMissing() {
				perr.Message = fmt.Sprintf("missing %s", bad.Type())
			}
		}
		tree.Close()
		return nil, perr
	}
	return &File{Path: path, Source: src, tree: tree}, nil
}

// firstError returns the first error or missing node in document order,
// descending only into subtrees that contain one.
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !(c.HasError() || c.IsMissing()) {
			continue
		}
		if bad := firstError(c); bad != nil {
			return bad
		}
	}
	return nil
}

// FileReadError reports a source file that could not be read.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

// ParseError reports a syntactically invalid source file.
type ParseError struct {
	Path    string
	Line    int // 1-based
	Column  int // 1-based
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
}
