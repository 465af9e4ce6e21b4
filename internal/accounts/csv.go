package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/freightbooks/internal/model"
)

const (
	numFields = 4
	colNumber = 0
	colName   = 1
	colType   = 2
	colParent = 3
)

// ReadChart reads a chart-of-accounts CSV (number,name,type,parent_number).
func ReadChart(r io.Reader) ([]ChartEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chart CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var entries []ChartEntry
	for i, rec := range records[1:] {
		e, err := UnmarshalChartEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// WriteChart writes a chart-of-accounts CSV including the header.
func WriteChart(w io.Writer, entries []ChartEntry) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"number", "name", "type", "parent_number"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, e := range entries {
		if err := cw.Write(MarshalChartEntry(e)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalChartEntry converts a ChartEntry to a CSV row.
func MarshalChartEntry(e ChartEntry) []string {
	row := make([]string, numFields)
	row[colNumber] = e.Number
	row[colName] = e.Name
	row[colType] = string(e.Type)
	row[colParent] = e.Parent
	return row
}

// UnmarshalChartEntry converts a CSV row to a ChartEntry.
func UnmarshalChartEntry(record []string) (ChartEntry, error) {
	if len(record) != numFields {
		return ChartEntry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	number := strings.TrimSpace(record[colNumber])
	if number == "" {
		return ChartEntry{}, fmt.Errorf("empty account number")
	}

	typ, err := model.ParseAccountType(record[colType])
	if err != nil {
		return ChartEntry{}, fmt.Errorf("account %s: %w", number, err)
	}

	return ChartEntry{
		Number: number,
		Name:   strings.TrimSpace(record[colName]),
		Type:   typ,
		Parent: strings.TrimSpace(record[colParent]),
	}, nil
}
