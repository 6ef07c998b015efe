package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/xkilldash9x/bulksend/api/schemas"
	"github.com/xkilldash9x/bulksend/internal/contacts"
)

// ReadMaster loads a master table written by CSVSink. Contacts get the
// 1-based position of their line as Row, which matches the source row of a
// complete run.
func ReadMaster(path string) (*schemas.BatchResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	res, err := ParseMaster(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// ParseMaster reads a master table from r.
func ParseMaster(r io.Reader) (*schemas.BatchResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty results table: %w", schemas.ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range Header[:3] {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("column %q: %w", col, schemas.ErrMissingColumn)
		}
	}
	cell := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	result := &schemas.BatchResult{}
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		kind, err := schemas.ParseOutcomeKind(cell(rec, "outcome"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		var ts time.Time
		if raw := cell(rec, "timestamp"); raw != "" {
			if ts, err = time.Parse(time.RFC3339, raw); err != nil {
				return nil, fmt.Errorf("line %d: invalid timestamp: %w", line+1, err)
			}
		}
		number := cell(rec, "number")
		name := cell(rec, "name")
		result.Append(schemas.Record{
			Contact: schemas.Contact{
				Row:       line,
				Name:      name,
				RawNumber: number,
				Normalized: schemas.NormalizedContact{
					E164Number:   number,
					GreetingName: contacts.GreetingName(name),
				},
			},
			Outcome:   schemas.Outcome{Kind: kind, Reason: cell(rec, "detail")},
			Timestamp: ts,
		})
	}
	return result, nil
}
