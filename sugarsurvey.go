package sugarsurvey

import (
	"context"
	"fmt"

	"github.com/jward/sugarsurvey/internal/analysis"
	"github.com/jward/sugarsurvey/internal/parser"
)

// Classified is one occurrence of a single file, flattened for display.
type Classified struct {
	Analysis string         `json:"analysis" yaml:"analysis"`
	Category string         `json:"category" yaml:"category"`
	Table    string         `json:"table" yaml:"table"`
	Line     int            `json:"line" yaml:"line"`
	Fields   map[string]any `json:"fields" yaml:"fields"`

	Occurrence analysis.Occurrence `json:"-" yaml:"-"`
}

// ClassifyFile parses the file at path and runs reg over it without a store.
// Occurrences are returned in registry order, then emission order.
func ClassifyFile(ctx context.Context, path string, reg analysis.Registry) ([]Classified, error) {
	p := parser.New()
	defer p.Close()

	f, err := p.ParseFile(ctx, path, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Classified
	err = reg.ClassifyAll(f, analysis.FileContext{Path: path}, func(name string, occs []analysis.Occurrence) {
		for _, o := range occs {
			out = append(out, flatten(name, o))
		}
	})
	if err != nil {
		return out, fmt.Errorf("classify %s: %w", path, err)
	}
	return out, nil
}

func flatten(name string, o analysis.Occurrence) Classified {
	row := o.Row()
	fields := make(map[string]any, len(row.Columns))
	for i, col := range row.Columns {
		fields[col] = row.Values[i]
	}
	return Classified{
		Analysis:   name,
		Category:   o.Category().String(),
		Table:      row.Table,
		Line:       o.Site().Line,
		Fields:     fields,
		Occurrence: o,
	}
}
