package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jward/sugarsurvey/internal/analysis"
	"github.com/jward/sugarsurvey/internal/month"
)

func TestSnapshotBatch_ConcurrentAdd(t *testing.T) {
	t.Parallel()
	b := NewSnapshotBatch("serde", month.MustParse("2024-01"), "abc", committed, "run")

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Add("closures", []analysis.Occurrence{
				analysis.ClosureUse{At: analysis.Site{Path: "a.rs", Line: i + 1}},
				analysis.ClosureUse{At: analysis.Site{Path: "a.rs", Line: i + 100}},
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 32, b.Len())
	assert.Equal(t, map[string]int{"closures": 32}, b.Counts())
}

func TestSnapshotBatch_KeepsOrderWithinAdd(t *testing.T) {
	t.Parallel()
	b := NewSnapshotBatch("serde", month.MustParse("2024-01"), "abc", committed, "run")
	b.Add("unsafe", []analysis.Occurrence{
		analysis.Region{Cat: analysis.UnsafeRegion, Kind: analysis.KindBlock, StartLine: 3},
		analysis.Region{Cat: analysis.UnsafeRegion, Kind: analysis.KindFunction, BlockCount: ptr(1), StartLine: 1},
	})
	rows := b.Rows()
	assert.Len(t, rows, 2)
	assert.Equal(t, "block", rows[0].Values[0])
	assert.Equal(t, "function", rows[1].Values[0])

	rows[0].Table = "mutated"
	assert.Equal(t, "unsafe_code", b.Rows()[0].Table)
}
