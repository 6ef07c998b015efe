package results

import (
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/bulksend/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Summary is the content of summary.json.
type Summary struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Duration   string         `json:"duration"`
	Total      int            `json:"total"`
	Counts     map[string]int `json:"counts"`
	Retryable  int            `json:"retryable"`
}

// Summarize derives the summary of result.
func Summarize(result *schemas.BatchResult) Summary {
	counts := make(map[string]int, len(schemas.OutcomeKinds))
	for kind, n := range result.Counts() {
		counts[kind.String()] = n
	}
	var d time.Duration
	if !result.StartedAt.IsZero() && result.FinishedAt.After(result.StartedAt) {
		d = result.FinishedAt.Sub(result.StartedAt)
	}
	return Summary{
		RunID:      result.RunID,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Duration:   d.Round(time.Second).String(),
		Total:      result.Len(),
		Counts:     counts,
		Retryable:  len(result.Retryable()),
	}
}

// WriteSummary writes the summary of result to path as indented JSON.
func WriteSummary(path string, result *schemas.BatchResult) error {
	data, err := json.MarshalIndent(Summarize(result), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadSummary loads a summary written by WriteSummary.
func ReadSummary(path string) (Summary, error) {
	var s Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return s, nil
}
