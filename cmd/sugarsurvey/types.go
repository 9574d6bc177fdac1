package main

import "time"

// CLIResult is the top-level envelope for every command's output.
type CLIResult struct {
	Command string `json:"command" yaml:"command"`
	Results any    `json:"results" yaml:"results"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// CLISample is one planned (month, commit) pair of a repository timeline.
type CLISample struct {
	Month       string    `json:"month" yaml:"month"`
	Commit      string    `json:"commit" yaml:"commit"`
	CommittedAt time.Time `json:"committed_at" yaml:"committed_at"`
}

// CLIMigration reports the tables a migrate run ensured.
type CLIMigration struct {
	Driver   string   `json:"driver" yaml:"driver"`
	Analyses []string `json:"analyses" yaml:"analyses"`
	Tables   []string `json:"tables" yaml:"tables"`
}
