// Package metrics records per-stage timing documents for a pipeline
// run, written as one JSON file under $FAB_WORKSPACE/<project>/metrics/.
package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// StageTiming is one pipeline stage's wall-clock record.
type StageTiming struct {
	Name       string        `json:"name"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	ItemCount  int           `json:"item_count,omitempty"`
	ErrorCount int           `json:"error_count,omitempty"`
}

// RunMetrics accumulates stage timings across one pipeline run.
type RunMetrics struct {
	RunStartedAt time.Time     `json:"run_started_at"`
	Stages       []StageTiming `json:"stages"`
}

// NewRunMetrics starts an empty metrics document stamped now.
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{RunStartedAt: time.Now()}
}

// StartStage returns a completion callback: call it when the stage
// finishes to append its timing. itemCount and errorCount are whatever
// the stage chooses to report (files analysed, compiles run, failures).
func (m *RunMetrics) StartStage(name string) func(itemCount, errorCount int) {
	started := time.Now()
	return func(itemCount, errorCount int) {
		m.Stages = append(m.Stages, StageTiming{
			Name:       name,
			StartedAt:  started,
			Duration:   time.Since(started),
			ItemCount:  itemCount,
			ErrorCount: errorCount,
		})
	}
}

// Write persists the document under dir, named by the run's start time.
// Metrics are best-effort diagnostics: callers may ignore the error.
func (m *RunMetrics) Write(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "run-"+m.RunStartedAt.Format("2006-01-02T150405")+".json")
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
