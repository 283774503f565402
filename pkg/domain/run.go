package domain

import "time"

// RunStatus is the terminal state of one traversal run
type RunStatus string

// run states; TIMEOUT is reported distinctly from FAILED so operators
// can tell "too slow" from "broken"
const (
	RunPending RunStatus = "pending"
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
	RunTimeout RunStatus = "timeout"
)

// RunResult is the structured outcome of one traversal run for a source
type RunResult struct {
	Source    string        `json:"source"`
	Status    RunStatus     `json:"status"`
	Duration  time.Duration `json:"duration"`
	Processed int           `json:"items_processed"`
	Skipped   int           `json:"items_skipped"`
	Error     string        `json:"error,omitempty"`
}
