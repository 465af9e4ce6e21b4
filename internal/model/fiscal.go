package model

import (
	"time"

	"cloud.google.com/go/civil"
)

// FiscalYear is an accounting period with an inclusive date interval.
type FiscalYear struct {
	ID        string     `json:"id"`
	Year      int        `json:"year"`
	Start     civil.Date `json:"start"`
	End       civil.Date `json:"end"`
	Closed    bool       `json:"closed"`
	CreatedAt time.Time  `json:"created_at"`
}

// Contains reports whether d falls inside [Start, End].
func (y FiscalYear) Contains(d civil.Date) bool {
	return !d.Before(y.Start) && !d.After(y.End)
}

// Overlaps reports whether [start, end] intersects the year's interval.
func (y FiscalYear) Overlaps(start, end civil.Date) bool {
	return !start.After(y.End) && !end.Before(y.Start)
}
