package ir

import "encoding/json"

// Run is the ledger entry for one maintenance command over the dataset.
type Run struct {
	ID            string `json:"id"` // UUIDv7
	Command       string `json:"command"`
	PolicyVersion string `json:"policy_version"`
	PolicyHash    string `json:"policy_hash"`
	DryRun        bool   `json:"dry_run"`
	ToolVersion   string `json:"tool_version"`
	Seq           int64  `json:"seq"` // Logical clock
}

// Outcome is what a run did to one record.
type Outcome string

const (
	OutcomeUpdated     Outcome = "updated"
	OutcomeUnchanged   Outcome = "unchanged"
	OutcomeWouldUpdate Outcome = "would-update" // dry run, record needs changes
	OutcomeFailed      Outcome = "failed"
)

// RunResult is one record's outcome within a run.
type RunResult struct {
	RunID      string          `json:"run_id"`
	Seq        int64           `json:"seq"`
	Path       string          `json:"path"`
	RecordID   string          `json:"record_id,omitempty"`
	Level      Level           `json:"level,omitempty"`
	Outcome    Outcome         `json:"outcome"`
	BeforeHash string          `json:"before_hash,omitempty"`
	AfterHash  string          `json:"after_hash,omitempty"`
	Diffs      json.RawMessage `json:"diffs,omitempty"` // JSON array of diffs
	Error      string          `json:"error,omitempty"`
}
