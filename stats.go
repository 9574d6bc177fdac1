package sugarsurvey

import (
	"maps"
	"slices"
	"time"
)

// RunStats summarises one RunSnapshots call.
type RunStats struct {
	RunID string `json:"run_id" yaml:"run_id"`

	Repositories       int `json:"repositories" yaml:"repositories"`
	RepositoriesFailed int `json:"repositories_failed" yaml:"repositories_failed"`

	Snapshots        int `json:"snapshots" yaml:"snapshots"`
	SnapshotsSkipped int `json:"snapshots_skipped" yaml:"snapshots_skipped"`
	SnapshotsFailed  int `json:"snapshots_failed" yaml:"snapshots_failed"`

	Files       int `json:"files" yaml:"files"`
	FilesFailed int `json:"files_failed" yaml:"files_failed"`

	// Occurrences counts committed occurrences per analysis name.
	Occurrences map[string]int `json:"occurrences" yaml:"occurrences"`

	Duration time.Duration `json:"duration_ns" yaml:"duration"`
}

func newRunStats(runID string) *RunStats {
	return &RunStats{RunID: runID, Occurrences: make(map[string]int)}
}

func (s *RunStats) merge(o *RunStats) {
	s.Repositories += o.Repositories
	s.RepositoriesFailed += o.RepositoriesFailed
	s.Snapshots += o.Snapshots
	s.SnapshotsSkipped += o.SnapshotsSkipped
	s.SnapshotsFailed += o.SnapshotsFailed
	s.Files += o.Files
	s.FilesFailed += o.FilesFailed
	for name, n := range o.Occurrences {
		s.Occurrences[name] += n
	}
}

// TotalOccurrences sums Occurrences over all analyses.
func (s *RunStats) TotalOccurrences() int {
	total := 0
	for _, n := range s.Occurrences {
		total += n
	}
	return total
}

// Analyses returns the analysis names with committed occurrences, sorted.
func (s *RunStats) Analyses() []string {
	return slices.Sorted(maps.Keys(s.Occurrences))
}
