// Package postlog records every accounting posting attempt in a CSV file,
// so business events can be reconciled against the ledger.
package postlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cleared-dev/freightbooks/internal/model"
)

// Outcome of one posting attempt.
type Outcome string

const (
	OutcomePosted  Outcome = "posted"
	OutcomeSkipped Outcome = "skipped" // missing context, e.g. no current fiscal year
	OutcomeInvalid Outcome = "invalid" // event payload rejected
	OutcomeFailed  Outcome = "failed"
)

// Attempt is one row in the posting log.
type Attempt struct {
	Timestamp   time.Time
	Event       string
	SourceType  model.SourceType
	SourceID    string
	Outcome     Outcome
	EntryNumber string
	Detail      string
}

// Header is the CSV header for posting-log.csv.
const Header = "timestamp,event,source_type,source_id,outcome,entry_number,detail"

const (
	numFields      = 7
	logDir         = "logs"
	logFile        = "logs/posting-log.csv"
	colTimestamp   = 0
	colEvent       = 1
	colSourceType  = 2
	colSourceID    = 3
	colOutcome     = 4
	colEntryNumber = 5
	colDetail      = 6
)

// MarshalAttempt converts an Attempt to a CSV row.
func MarshalAttempt(a Attempt) []string {
	row := make([]string, numFields)
	row[colTimestamp] = a.Timestamp.UTC().Format(time.RFC3339)
	row[colEvent] = a.Event
	row[colSourceType] = string(a.SourceType)
	row[colSourceID] = a.SourceID
	row[colOutcome] = string(a.Outcome)
	row[colEntryNumber] = a.EntryNumber
	row[colDetail] = a.Detail
	return row
}

// UnmarshalAttempt converts a CSV row to an Attempt.
func UnmarshalAttempt(record []string) (Attempt, error) {
	if len(record) != numFields {
		return Attempt{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Attempt{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	outcome := Outcome(record[colOutcome])
	switch outcome {
	case OutcomePosted, OutcomeSkipped, OutcomeInvalid, OutcomeFailed:
	default:
		return Attempt{}, fmt.Errorf("unknown outcome %q", record[colOutcome])
	}

	return Attempt{
		Timestamp:   ts,
		Event:       record[colEvent],
		SourceType:  model.SourceType(record[colSourceType]),
		SourceID:    record[colSourceID],
		Outcome:     outcome,
		EntryNumber: record[colEntryNumber],
		Detail:      record[colDetail],
	}, nil
}

// Path returns the posting log location under root.
func Path(root string) string {
	return filepath.Join(root, logFile)
}

// Append writes attempts to <root>/logs/posting-log.csv, creating the file and header if needed.
func Append(root string, attempts []Attempt) error {
	dir := filepath.Join(root, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := Path(root)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening posting log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, a := range attempts {
		if err := cw.Write(MarshalAttempt(a)); err != nil {
			return fmt.Errorf("writing attempt %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all attempts from <root>/logs/posting-log.csv.
// Returns an empty slice if the file does not exist.
func Read(root string) ([]Attempt, error) {
	f, err := os.Open(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening posting log: %w", err)
	}
	defer f.Close()

	return readAttempts(f)
}

func readAttempts(r io.Reader) ([]Attempt, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading posting log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var attempts []Attempt
	for i, rec := range records[1:] {
		a, err := UnmarshalAttempt(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}

// FileRecorder appends each attempt to the posting log under Root.
type FileRecorder struct {
	Root string

	mu sync.Mutex
}

// NewFileRecorder returns a recorder writing under root.
func NewFileRecorder(root string) *FileRecorder {
	return &FileRecorder{Root: root}
}

// Record appends one attempt.
func (r *FileRecorder) Record(a Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Append(r.Root, []Attempt{a})
}

// MemoryRecorder keeps attempts in memory.
type MemoryRecorder struct {
	mu       sync.Mutex
	attempts []Attempt
}

// Record stores one attempt.
func (r *MemoryRecorder) Record(a Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return nil
}

// Attempts returns a copy of everything recorded so far.
func (r *MemoryRecorder) Attempts() []Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Attempt(nil), r.attempts...)
}
