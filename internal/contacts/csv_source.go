package contacts

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/bulksend/api/schemas"
)

// Columns names the required header cells.
type Columns struct {
	Name   string
	Number string
}

// DefaultColumns matches the spreadsheet export the tool was built around.
var DefaultColumns = Columns{Name: "Name", Number: "Contact No"}

// CSVSource reads contacts from a CSV file with a header row.
type CSVSource struct {
	path        string
	columns     Columns
	countryCode string
	logger      *zap.Logger
}

var _ schemas.ContactSource = (*CSVSource)(nil)

// NewCSVSource creates a source for path. Numbers are normalized with countryCode.
func NewCSVSource(path string, columns Columns, countryCode string, logger *zap.Logger) *CSVSource {
	return &CSVSource{
		path:        path,
		columns:     columns,
		countryCode: countryCode,
		logger:      logger.Named("contacts"),
	}
}

// Contacts loads every data row. A missing required column fails the whole load.
func (s *CSVSource) Contacts(ctx context.Context) ([]schemas.Contact, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open contact file: %w", err)
	}
	defer f.Close()

	list, err := Parse(ctx, f, s.columns, s.countryCode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	s.logger.Info("Loaded contacts.", zap.String("path", s.path), zap.Int("count", len(list)))
	return list, nil
}

// Parse reads contacts from r. Rows with an empty number are kept so that
// they surface as outcomes instead of silently disappearing.
func Parse(ctx context.Context, r io.Reader, columns Columns, countryCode string) ([]schemas.Contact, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty input", schemas.ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	nameIdx, numberIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case columns.Name:
			nameIdx = i
		case columns.Number:
			numberIdx = i
		}
	}
	var missing []string
	if nameIdx < 0 {
		missing = append(missing, columns.Name)
	}
	if numberIdx < 0 {
		missing = append(missing, columns.Number)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", schemas.ErrMissingColumn, strings.Join(missing, ", "))
	}

	var out []schemas.Contact
	for row := 1; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		c := schemas.Contact{
			Row:       row,
			Name:      cell(rec, nameIdx),
			RawNumber: cell(rec, numberIdx),
		}
		c.Normalized = schemas.NormalizedContact{
			E164Number:   NormalizePhone(c.RawNumber, countryCode),
			GreetingName: GreetingName(c.Name),
		}
		out = append(out, c)
	}
	return out, nil
}

func cell(rec []string, idx int) string {
	if idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}
