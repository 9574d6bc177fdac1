package sugarsurvey

import (
	"github.com/jward/sugarsurvey/internal/analysis"
	"github.com/jward/sugarsurvey/internal/month"
	"github.com/jward/sugarsurvey/internal/store"
)

// Public type aliases for internal types used in the Engine and QueryBuilder
// APIs.

type Store = store.Store
type Snapshot = store.Snapshot
type Registry = analysis.Registry
type Occurrence = analysis.Occurrence
type Month = month.Bucket
