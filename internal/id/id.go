package id

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	entryPrefix = "JE"
	seqWidth    = 6
)

// FormatEntryNumber returns an entry number like "JE-2024-000001".
func FormatEntryNumber(year, seq int) string {
	return fmt.Sprintf("%s-%04d-%0*d", entryPrefix, year, seqWidth, seq)
}

// YearPrefix returns the common prefix of all entry numbers of a year: "JE-2024-".
func YearPrefix(year int) string {
	return fmt.Sprintf("%s-%04d-", entryPrefix, year)
}

// ParseEntryNumber parses "JE-2024-000001" into year and sequence.
func ParseEntryNumber(number string) (year, seq int, err error) {
	parts := strings.SplitN(number, "-", 3)
	if len(parts) != 3 || parts[0] != entryPrefix {
		return 0, 0, fmt.Errorf("invalid entry number format: %q", number)
	}

	year, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year in entry number %q: %w", number, err)
	}

	seq, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid sequence in entry number %q: %w", number, err)
	}
	if seq < 1 {
		return 0, 0, fmt.Errorf("invalid sequence in entry number %q: must be positive", number)
	}

	return year, seq, nil
}

// Sequence returns only the numeric suffix of an entry number.
func Sequence(number string) (int, error) {
	_, seq, err := ParseEntryNumber(number)
	return seq, err
}
