package schemas

import (
	"fmt"
	"sort"
	"time"
)

// -- Outcome Schemas --

// OutcomeKind is the terminal classification of one contact.
type OutcomeKind string

const (
	OutcomeSent          OutcomeKind = "SENT"
	OutcomeInvalidNumber OutcomeKind = "INVALID_NUMBER"
	OutcomeSendFailed    OutcomeKind = "SEND_FAILED"
	OutcomeError         OutcomeKind = "ERROR"
)

// OutcomeKinds lists every kind in reporting order.
var OutcomeKinds = []OutcomeKind{OutcomeSent, OutcomeInvalidNumber, OutcomeSendFailed, OutcomeError}

// String returns the string representation of the OutcomeKind.
func (k OutcomeKind) String() string {
	return string(k)
}

// IsValid reports whether k is a known kind.
func (k OutcomeKind) IsValid() bool {
	switch k {
	case OutcomeSent, OutcomeInvalidNumber, OutcomeSendFailed, OutcomeError:
		return true
	}
	return false
}

// ParseOutcomeKind converts a persisted value back into an OutcomeKind.
func ParseOutcomeKind(s string) (OutcomeKind, error) {
	k := OutcomeKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown outcome %q", s)
	}
	return k, nil
}

// Retryable reports whether a contact with this outcome is eligible for a
// later retry pass.
func (k OutcomeKind) Retryable() bool {
	return k == OutcomeSendFailed || k == OutcomeError
}

// Outcome is produced exactly once per contact per run.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Reason string      `json:"reason,omitempty"`
}

func Sent() Outcome { return Outcome{Kind: OutcomeSent} }

func InvalidNumber() Outcome { return Outcome{Kind: OutcomeInvalidNumber} }

func SendFailed(reason string) Outcome {
	return Outcome{Kind: OutcomeSendFailed, Reason: reason}
}

// Failure classifies an unexpected condition as an Error outcome.
func Failure(reason string) Outcome {
	return Outcome{Kind: OutcomeError, Reason: reason}
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return o.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", o.Kind, o.Reason)
}

// -- Batch Result Schemas --

// Record pairs a contact with its outcome.
type Record struct {
	Contact   Contact   `json:"contact"`
	Outcome   Outcome   `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
}

// BatchResult is the append-only log of one run. Partitions are computed from
// Records on demand and never stored separately.
type BatchResult struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Records    []Record  `json:"records"`
}

// Append adds a record to the end of the log.
func (b *BatchResult) Append(rec Record) {
	b.Records = append(b.Records, rec)
}

func (b *BatchResult) Len() int { return len(b.Records) }

// Filter returns the records whose outcome kind is one of kinds, in log order.
func (b *BatchResult) Filter(kinds ...OutcomeKind) []Record {
	var out []Record
	for _, rec := range b.Records {
		for _, k := range kinds {
			if rec.Outcome.Kind == k {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

func (b *BatchResult) Sent() []Record { return b.Filter(OutcomeSent) }

func (b *BatchResult) Invalid() []Record { return b.Filter(OutcomeInvalidNumber) }

// Failed returns the records whose outcome kind is retryable.
func (b *BatchResult) Failed() []Record {
	var out []Record
	for _, rec := range b.Records {
		if rec.Outcome.Kind.Retryable() {
			out = append(out, rec)
		}
	}
	return out
}

// Partition groups records by outcome kind. Every kind is present in the map.
func (b *BatchResult) Partition() map[OutcomeKind][]Record {
	parts := make(map[OutcomeKind][]Record, len(OutcomeKinds))
	for _, k := range OutcomeKinds {
		parts[k] = nil
	}
	for _, rec := range b.Records {
		parts[rec.Outcome.Kind] = append(parts[rec.Outcome.Kind], rec)
	}
	return parts
}

// Counts returns the number of records per outcome kind.
func (b *BatchResult) Counts() map[OutcomeKind]int {
	counts := make(map[OutcomeKind]int, len(OutcomeKinds))
	for _, k := range OutcomeKinds {
		counts[k] = 0
	}
	for _, rec := range b.Records {
		counts[rec.Outcome.Kind]++
	}
	return counts
}

// Retryable returns the contacts eligible for a retry pass.
func (b *BatchResult) Retryable() []Contact {
	failed := b.Failed()
	if len(failed) == 0 {
		return nil
	}
	out := make([]Contact, len(failed))
	for i, rec := range failed {
		out[i] = rec.Contact
	}
	return out
}

// MergeResults joins per-worker results into one log ordered by source row.
// The earliest start and latest finish are kept.
func MergeResults(runID string, parts ...*BatchResult) *BatchResult {
	merged := &BatchResult{RunID: runID}
	for _, p := range parts {
		if p == nil {
			continue
		}
		if merged.StartedAt.IsZero() || (!p.StartedAt.IsZero() && p.StartedAt.Before(merged.StartedAt)) {
			merged.StartedAt = p.StartedAt
		}
		if p.FinishedAt.After(merged.FinishedAt) {
			merged.FinishedAt = p.FinishedAt
		}
		merged.Records = append(merged.Records, p.Records...)
	}
	sort.SliceStable(merged.Records, func(i, j int) bool {
		return merged.Records[i].Contact.Row < merged.Records[j].Contact.Row
	})
	return merged
}
