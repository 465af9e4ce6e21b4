package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/freightbooks/internal/model"
)

// Header is the CSV header of a journal export.
const Header = "entry_number,date,entry_description,account_number,line_description,debit,credit,source_type,source_id,reference"

const (
	numFields     = 10
	colNumber     = 0
	colDate       = 1
	colEntryDesc  = 2
	colAcctNumber = 3
	colLineDesc   = 4
	colDebit      = 5
	colCredit     = 6
	colSourceType = 7
	colSourceID   = 8
	colRef        = 9
)

// Row is one line of a journal export with its entry header repeated.
type Row struct {
	EntryNumber      string
	Date             civil.Date
	EntryDescription string
	AccountNumber    string
	LineDescription  string
	Debit            decimal.Decimal
	Credit           decimal.Decimal
	SourceType       model.SourceType
	SourceID         string
	Reference        string
}

// Rows flattens entries into export rows, one per line.
func Rows(entries []model.JournalEntry) []Row {
	var rows []Row
	for _, e := range entries {
		for _, l := range e.Lines {
			rows = append(rows, Row{
				EntryNumber:      e.Number,
				Date:             e.Date,
				EntryDescription: e.Description,
				AccountNumber:    l.AccountNumber,
				LineDescription:  l.Description,
				Debit:            l.Debit,
				Credit:           l.Credit,
				SourceType:       e.SourceType,
				SourceID:         e.SourceID,
				Reference:        e.Reference,
			})
		}
	}
	return rows
}

// ReadRows reads all rows from a journal CSV reader.
func ReadRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var rows []Row
	for i, rec := range records[1:] {
		row, err := UnmarshalRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteRows writes rows to a journal CSV writer (including header).
func WriteRows(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, row := range rows {
		if err := cw.Write(MarshalRow(row)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEntries writes the lines of entries as CSV rows.
func WriteEntries(w io.Writer, entries []model.JournalEntry) error {
	return WriteRows(w, Rows(entries))
}

// MarshalRow converts a Row to a CSV record.
func MarshalRow(row Row) []string {
	rec := make([]string, numFields)
	rec[colNumber] = row.EntryNumber
	rec[colDate] = row.Date.String()
	rec[colEntryDesc] = row.EntryDescription
	rec[colAcctNumber] = row.AccountNumber
	rec[colLineDesc] = row.LineDescription

	if !row.Debit.IsZero() {
		rec[colDebit] = model.FormatAmount(row.Debit)
	}
	if !row.Credit.IsZero() {
		rec[colCredit] = model.FormatAmount(row.Credit)
	}

	rec[colSourceType] = string(row.SourceType)
	rec[colSourceID] = row.SourceID
	rec[colRef] = row.Reference
	return rec
}

// UnmarshalRow converts a CSV record to a Row.
func UnmarshalRow(rec []string) (Row, error) {
	if len(rec) != numFields {
		return Row{}, fmt.Errorf("expected %d fields, got %d", numFields, len(rec))
	}

	date, err := civil.ParseDate(rec[colDate])
	if err != nil {
		return Row{}, fmt.Errorf("parsing date %q: %w", rec[colDate], err)
	}

	var debit, credit decimal.Decimal

	if rec[colDebit] != "" {
		debit, err = decimal.NewFromString(rec[colDebit])
		if err != nil {
			return Row{}, fmt.Errorf("parsing debit %q: %w", rec[colDebit], err)
		}
	}

	if rec[colCredit] != "" {
		credit, err = decimal.NewFromString(rec[colCredit])
		if err != nil {
			return Row{}, fmt.Errorf("parsing credit %q: %w", rec[colCredit], err)
		}
	}

	st := model.SourceType(rec[colSourceType])
	if st != "" && !st.Valid() {
		return Row{}, fmt.Errorf("unknown source_type %q", rec[colSourceType])
	}

	return Row{
		EntryNumber:      rec[colNumber],
		Date:             date,
		EntryDescription: rec[colEntryDesc],
		AccountNumber:    rec[colAcctNumber],
		LineDescription:  rec[colLineDesc],
		Debit:            debit,
		Credit:           credit,
		SourceType:       st,
		SourceID:         rec[colSourceID],
		Reference:        rec[colRef],
	}, nil
}

// GroupRows splits rows into consecutive groups sharing an entry number.
func GroupRows(rows []Row) [][]Row {
	var groups [][]Row
	for i, row := range rows {
		if i == 0 || row.EntryNumber != rows[i-1].EntryNumber {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], row)
	}
	return groups
}

// Import commits each group of rows as a new MANUAL entry with a fresh
// number. The exported number is kept as the reference when the row has
// none. Import stops at the first failing group and returns what it
// committed so far.
func (l *Ledger) Import(ctx context.Context, rows []Row, actor string) ([]model.JournalEntry, error) {
	var committed []model.JournalEntry
	for _, group := range GroupRows(rows) {
		head := group[0]
		ref := head.Reference
		if ref == "" {
			ref = head.EntryNumber
		}
		e := l.NewDraft(DraftParams{
			Date:        head.Date,
			Description: head.EntryDescription,
			Reference:   ref,
			SourceType:  model.SourceManual,
			CreatedBy:   actor,
		})
		for _, row := range group {
			if err := l.AppendLine(ctx, e, row.AccountNumber, row.Debit, row.Credit, row.LineDescription); err != nil {
				return committed, fmt.Errorf("importing %s: %w", head.EntryNumber, err)
			}
		}
		c, err := l.Commit(ctx, e)
		if err != nil {
			return committed, fmt.Errorf("importing %s: %w", head.EntryNumber, err)
		}
		committed = append(committed, c)
	}
	l.log.Info().Int("entries", len(committed)).Msg("journal imported")
	return committed, nil
}
