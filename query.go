package sugarsurvey

import (
	"context"
	"fmt"
	"slices"

	"github.com/jward/sugarsurvey/internal/analysis"
	"github.com/jward/sugarsurvey/internal/month"
	"github.com/jward/sugarsurvey/internal/store"
)

// QueryBuilder provides longitudinal read queries over the Store.
type QueryBuilder struct {
	store    *store.Store
	registry analysis.Registry
}

// NewQueryBuilder returns a QueryBuilder over s for the tables of reg.
func NewQueryBuilder(s *store.Store, reg analysis.Registry) *QueryBuilder {
	return &QueryBuilder{store: s, registry: reg}
}

// TraitMonth is the usage of one trait in one month for one syntax category.
type TraitMonth struct {
	Bucket       month.Bucket `db:"month_bucket" json:"-" yaml:"-"`
	Month        string       `db:"-" json:"month" yaml:"month"`
	Syntax       string       `db:"syntax" json:"syntax" yaml:"syntax"`
	Occurrences  int          `db:"occurrences" json:"occurrences" yaml:"occurrences"`
	Repositories int          `db:"repositories" json:"repositories" yaml:"repositories"`
}

// MonthCount is the number of rows of one table across a month's snapshots.
type MonthCount struct {
	Bucket      month.Bucket `db:"month_bucket" json:"-" yaml:"-"`
	Month       string       `db:"-" json:"month" yaml:"month"`
	Snapshots   int          `db:"snapshots" json:"snapshots" yaml:"snapshots"`
	Occurrences int          `db:"occurrences" json:"occurrences" yaml:"occurrences"`
}

// RegionMonth summarises the unsafe or async regions of one month.
type RegionMonth struct {
	Bucket     month.Bucket `db:"month_bucket" json:"-" yaml:"-"`
	Month      string       `db:"-" json:"month" yaml:"month"`
	RegionType string       `db:"region_type" json:"region_type" yaml:"region_type"`
	Total      int          `db:"total" json:"total" yaml:"total"`
	Outermost  int          `db:"outermost" json:"outermost" yaml:"outermost"`
	Qualified  int          `db:"qualified" json:"qualified" yaml:"qualified"`
}

// TypeCount is how often a type appears as a transmute destination.
type TypeCount struct {
	Type  string `db:"type_name" json:"type" yaml:"type"`
	Count int    `db:"occurrences" json:"occurrences" yaml:"occurrences"`
}

// Snapshots returns the snapshots of repo, newest month first. An empty repo
// lists every repository.
func (q *QueryBuilder) Snapshots(ctx context.Context, repo string) ([]Snapshot, error) {
	return q.store.SnapshotsByRepository(ctx, repo)
}

// TraitUsageByMonth counts rows naming traitName per month and syntax
// category, oldest month first.
func (q *QueryBuilder) TraitUsageByMonth(ctx context.Context, traitName string) ([]TraitMonth, error) {
	if err := q.requireTable("traits"); err != nil {
		return nil, fmt.Errorf("trait usage by month: %w", err)
	}
	db := q.store.DB()
	var out []TraitMonth
	err := db.SelectContext(ctx, &out, db.Rebind(
		`SELECT s.month_bucket AS month_bucket, t.syntax AS syntax,
		        COUNT(*) AS occurrences, COUNT(DISTINCT s.repository) AS repositories
		 FROM traits t JOIN snapshots s ON s.id = t.snapshot_id
		 WHERE t.trait_name = ?
		 GROUP BY s.month_bucket, t.syntax
		 ORDER BY s.month_bucket, t.syntax`), traitName)
	if err != nil {
		return nil, fmt.Errorf("trait usage by month: %w", err)
	}
	for i := range out {
		out[i].Month = out[i].Bucket.String()
	}
	return out, nil
}

// CategoryCountsByMonth counts the rows of an analysis table per month,
// oldest month first. Months whose snapshots have no rows report zero.
func (q *QueryBuilder) CategoryCountsByMonth(ctx context.Context, table string) ([]MonthCount, error) {
	if err := q.requireTable(table); err != nil {
		return nil, fmt.Errorf("category counts by month: %w", err)
	}
	db := q.store.DB()
	var out []MonthCount
	err := db.SelectContext(ctx, &out,
		`SELECT s.month_bucket AS month_bucket, COUNT(DISTINCT s.id) AS snapshots,
		        COUNT(t.id) AS occurrences
		 FROM snapshots s LEFT JOIN `+table+` t ON t.snapshot_id = s.id
		 GROUP BY s.month_bucket
		 ORDER BY s.month_bucket`)
	if err != nil {
		return nil, fmt.Errorf("category counts by month: %w", err)
	}
	for i := range out {
		out[i].Month = out[i].Bucket.String()
	}
	return out, nil
}

// RegionsByMonth summarises unsafe_code or async_code per month and region
// type, oldest month first.
func (q *QueryBuilder) RegionsByMonth(ctx context.Context, table string) ([]RegionMonth, error) {
	if table != "unsafe_code" && table != "async_code" {
		return nil, fmt.Errorf("regions by month: %q is not a region table", table)
	}
	if err := q.requireTable(table); err != nil {
		return nil, fmt.Errorf("regions by month: %w", err)
	}
	db := q.store.DB()
	var out []RegionMonth
	err := db.SelectContext(ctx, &out,
		`SELECT s.month_bucket AS month_bucket, r.region_type AS region_type,
		        COUNT(*) AS total,
		        SUM(CASE WHEN r.outermost THEN 1 ELSE 0 END) AS outermost,
		        SUM(CASE WHEN r.qualified THEN 1 ELSE 0 END) AS qualified
		 FROM `+table+` r JOIN snapshots s ON s.id = r.snapshot_id
		 GROUP BY s.month_bucket, r.region_type
		 ORDER BY s.month_bucket, r.region_type`)
	if err != nil {
		return nil, fmt.Errorf("regions by month: %w", err)
	}
	for i := range out {
		out[i].Month = out[i].Bucket.String()
	}
	return out, nil
}

// TransmuteTargets ranks transmute destination types by frequency. Calls
// without an explicit destination type are ignored.
func (q *QueryBuilder) TransmuteTargets(ctx context.Context) ([]TypeCount, error) {
	if err := q.requireTable("transmutes"); err != nil {
		return nil, fmt.Errorf("transmute targets: %w", err)
	}
	var out []TypeCount
	err := q.store.DB().SelectContext(ctx, &out,
		`SELECT to_type AS type_name, COUNT(*) AS occurrences
		 FROM transmutes
		 WHERE to_type IS NOT NULL
		 GROUP BY to_type
		 ORDER BY occurrences DESC, to_type`)
	if err != nil {
		return nil, fmt.Errorf("transmute targets: %w", err)
	}
	return out, nil
}

// requireTable rejects tables that no registered analysis owns. Table names
// are spliced into SQL, so this is also the injection guard.
func (q *QueryBuilder) requireTable(table string) error {
	if !slices.Contains(q.registry.Tables(), table) {
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}
