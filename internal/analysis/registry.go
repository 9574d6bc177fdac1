package analysis

import (
	"errors"
	"fmt"
	"runtime/debug"
	"slices"

	"github.com/jward/sugarsurvey/internal/parser"
)

// Registry is an immutable, ordered list of analyses. The zero value is an
// empty registry.
type Registry struct {
	descs []Descriptor
}

// NewRegistry builds a registry from descs. Names must be unique.
func NewRegistry(descs ...Descriptor) (Registry, error) {
	seen := make(map[string]bool, len(descs))
	for _, d := range descs {
		if d.Name == "" || d.Classify == nil {
			return Registry{}, fmt.Errorf("analysis: descriptor %q is incomplete", d.Name)
		}
		if seen[d.Name] {
			return Registry{}, fmt.Errorf("analysis: duplicate descriptor %q", d.Name)
		}
		seen[d.Name] = true
	}
	return Registry{descs: slices.Clone(descs)}, nil
}

// Default returns the registry of every built-in analysis.
func Default() Registry {
	r, err := NewRegistry(Traits(), Closures(), Unsafe(), Async())
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the number of analyses.
func (r Registry) Len() int { return len(r.descs) }

// Descriptors returns a copy of the analyses in registration order.
func (r Registry) Descriptors() []Descriptor {
	return slices.Clone(r.descs)
}

// Names returns the analysis names in registration order.
func (r Registry) Names() []string {
	names := make([]string, len(r.descs))
	for i, d := range r.descs {
		names[i] = d.Name
	}
	return names
}

// Tables returns every table owned by the registered analyses.
func (r Registry) Tables() []string {
	var out []string
	for _, d := range r.descs {
		out = append(out, d.Tables...)
	}
	return out
}

// Only returns a copy restricted to the named analyses, keeping registration
// order. Unknown names are an error. No names returns r unchanged.
func (r Registry) Only(names ...string) (Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Descriptor
	for _, d := range r.descs {
		if want[d.Name] {
			out = append(out, d)
			delete(want, d.Name)
		}
	}
	if len(want) > 0 {
		var unknown []string
		for n := range want {
			unknown = append(unknown, n)
		}
		slices.Sort(unknown)
		return Registry{}, fmt.Errorf("analysis: unknown analyses %v (have %v)", unknown, r.Names())
	}
	return Registry{descs: out}, nil
}

// PanicError reports an analysis that panicked while classifying a file.
type PanicError struct {
	Analysis string
	Path     string
	Value    any
	Stack    []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("analysis %s panicked on %s: %v", e.Analysis, e.Path, e.Value)
}

// ClassifyAll runs every analysis over f. Each analysis's occurrences are
// collected fully before emit is called, so a panicking analysis contributes
// nothing and the remaining analyses still run. Panics are returned joined.
func (r Registry) ClassifyAll(f *parser.File, fc FileContext, emit func(analysis string, occs []Occurrence)) error {
	var errs []error
	for _, d := range r.descs {
		occs, err := classifyOne(d, f, fc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(occs) > 0 {
			emit(d.Name, occs)
		}
	}
	return errors.Join(errs...)
}

func classifyOne(d Descriptor, f *parser.File, fc FileContext) (occs []Occurrence, err error) {
	defer func() {
		if v := recover(); v != nil {
			occs = nil
			err = &PanicError{Analysis: d.Name, Path: sitePath(f, fc), Value: v, Stack: debug.Stack()}
		}
	}()
	for o := range d.Classify(f, fc) {
		occs = append(occs, o)
	}
	return occs, nil
}
