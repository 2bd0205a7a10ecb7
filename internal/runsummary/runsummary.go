// Package runsummary records what happened in a `turbo run` (or `--dry`
// run) as a single JSON document, time-sortable by ID, persisted to
// .turbo/runs/<id>.json (spec §4.H.6 "Run summary").
package runsummary

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"

	"github.com/turbine-build/turbine/internal/turbopath"
	"github.com/turbine-build/turbine/internal/util"
)

const schemaVersion = "1"

// TaskSummary is the per-task section of a RunSummary.
type TaskSummary struct {
	TaskID   string              `json:"taskId"`
	Package  string               `json:"package"`
	Task     string               `json:"task"`
	Hash     string               `json:"hash"`
	Command  string               `json:"command"`
	CacheHit bool                 `json:"cacheHit"`
	CacheSrc string               `json:"cacheSource,omitempty"`
	Status   string               `json:"status"`
	Error    string               `json:"error,omitempty"`
	StartAt  time.Time            `json:"start"`
	Duration time.Duration        `json:"duration"`
	LogFile  string               `json:"logFile,omitempty"`
	Outputs  []string             `json:"outputs,omitempty"`
}

// Task status values, mirrored in TaskSummary.Status.
const (
	StatusBuilt    = "built"
	StatusCached   = "cached"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
	StatusDryRun   = "dry_run" // shown in --dry output, never executed
)

// ExecutionSummary aggregates counts across every task in the run.
type ExecutionSummary struct {
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt"`
	Duration  time.Duration `json:"duration"`
	Attempted int           `json:"attempted"`
	Cached    int           `json:"cached"`
	Success   int           `json:"success"`
	Failed    int           `json:"failed"`
}

// RunSummary is the full JSON document written per run.
type RunSummary struct {
	ID ksuid.KSUID `json:"id"` // time-sortable, also the summary's filename
	// SessionID is printed by `turbine run` and stored in the summary file,
	// linking that printed output to the file; it is not sent to the daemon
	// or to tasks. Unlike ID it carries no ordering meaning.
	SessionID        string            `json:"sessionId"`
	Version          string            `json:"version"`
	Packages         []string          `json:"packages"`
	EnvMode          util.EnvMode      `json:"envMode"`
	GlobalHash       string            `json:"globalHash"`
	ExecutionSummary *ExecutionSummary `json:"execution"`
	Tasks            []*TaskSummary    `json:"tasks"`
}

// New starts a RunSummary with a fresh, time-sortable ID.
func New(packages []string, envMode util.EnvMode, globalHash string, startedAt time.Time) *RunSummary {
	return &RunSummary{
		ID:               ksuid.New(),
		SessionID:        uuid.New().String(),
		Version:          schemaVersion,
		Packages:         packages,
		EnvMode:          envMode,
		GlobalHash:       globalHash,
		ExecutionSummary: &ExecutionSummary{StartedAt: startedAt},
		Tasks:            nil,
	}
}

// AddTask appends one task's outcome and updates the aggregate counts.
func (rs *RunSummary) AddTask(t *TaskSummary) {
	rs.Tasks = append(rs.Tasks, t)
	rs.ExecutionSummary.Attempted++
	switch t.Status {
	case StatusCached:
		rs.ExecutionSummary.Cached++
		rs.ExecutionSummary.Success++
	case StatusBuilt:
		rs.ExecutionSummary.Success++
	case StatusFailed:
		rs.ExecutionSummary.Failed++
	}
}

// Finish stamps the end time and total duration.
func (rs *RunSummary) Finish(endedAt time.Time) {
	rs.ExecutionSummary.EndedAt = endedAt
	rs.ExecutionSummary.Duration = endedAt.Sub(rs.ExecutionSummary.StartedAt)
}

// Path is where this summary would be written under repoRoot.
func (rs *RunSummary) Path(repoRoot turbopath.AbsoluteSystemPath) turbopath.AbsoluteSystemPath {
	return repoRoot.UntypedJoin(".turbo", "runs", rs.ID.String()+".json")
}

// WriteJSON renders and persists the summary (spec §4.H.6).
func (rs *RunSummary) WriteJSON(repoRoot turbopath.AbsoluteSystemPath) error {
	path := rs.Path(repoRoot)
	if err := path.EnsureDir(); err != nil {
		return err
	}
	body, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return err
	}
	return path.WriteFile(body, 0o644)
}
