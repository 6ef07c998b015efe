// Package results persists batch results as CSV tables and a JSON summary,
// and reads a previous master table back for a retry pass.
package results

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bulksend/api/schemas"
)

const (
	MasterFile  = "results.csv"
	SummaryFile = "summary.json"
)

// Header is the column layout shared by the master table and every partition.
var Header = []string{"number", "name", "outcome", "timestamp", "detail"}

var partitionFiles = map[schemas.OutcomeKind]string{
	schemas.OutcomeSent:          "sent_numbers.csv",
	schemas.OutcomeInvalidNumber: "invalid_numbers.csv",
	schemas.OutcomeSendFailed:    "send_failed_numbers.csv",
	schemas.OutcomeError:         "error_numbers.csv",
}

// PartitionFile returns the file name holding records of kind.
func PartitionFile(kind schemas.OutcomeKind) string {
	return partitionFiles[kind]
}

// CSVSink writes the master table, one table per outcome kind and a
// summary into a directory. Every table is rewritten in full.
type CSVSink struct {
	dir    string
	logger *zap.Logger
}

var _ schemas.ResultSink = (*CSVSink)(nil)

func NewCSVSink(dir string, logger *zap.Logger) *CSVSink {
	return &CSVSink{dir: dir, logger: logger.Named("results")}
}

// Dir returns the output directory.
func (s *CSVSink) Dir() string { return s.dir }

func (s *CSVSink) Persist(ctx context.Context, result *schemas.BatchResult) error {
	if result == nil {
		return errors.New("nil batch result")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create results directory %s: %w", s.dir, err)
	}

	if err := writeTable(filepath.Join(s.dir, MasterFile), result.Records); err != nil {
		return err
	}
	parts := result.Partition()
	for _, kind := range schemas.OutcomeKinds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeTable(filepath.Join(s.dir, PartitionFile(kind)), parts[kind]); err != nil {
			return err
		}
	}
	if err := WriteSummary(filepath.Join(s.dir, SummaryFile), result); err != nil {
		return err
	}

	s.logger.Info("Results written.",
		zap.String("dir", s.dir),
		zap.Int("records", result.Len()))
	return nil
}

func writeTable(path string, records []schemas.Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	for _, rec := range records {
		if err := w.Write(row(rec)); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func row(rec schemas.Record) []string {
	ts := ""
	if !rec.Timestamp.IsZero() {
		ts = rec.Timestamp.Format(time.RFC3339)
	}
	return []string{
		rec.Contact.Number(),
		rec.Contact.Name,
		rec.Outcome.Kind.String(),
		ts,
		rec.Outcome.Reason,
	}
}
