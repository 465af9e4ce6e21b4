package report

import (
	"context"
	"sort"

	"github.com/cleared-dev/freightbooks/internal/model"
	"github.com/cleared-dev/freightbooks/internal/postlog"
)

// Reconciliation compares business events against ledger entries for one
// source type.
type Reconciliation struct {
	SourceType model.SourceType
	Events     int // distinct business objects seen in the posting log
	Entries    int // ledger entries of this source type
	Posted     int
	Skipped    int
	Invalid    int
	Failed     int
	// Missing lists business objects with attempts but no ledger entry.
	Missing []string
}

// InSync reports whether every business object has a ledger entry.
func (rc Reconciliation) InSync() bool {
	return len(rc.Missing) == 0
}

// Reconcile groups posting attempts by source type and checks each
// business object against the ledger.
func (r *Reporter) Reconcile(ctx context.Context, attempts []postlog.Attempt) ([]Reconciliation, error) {
	auto, err := r.ledger.Automatic(ctx)
	if err != nil {
		return nil, err
	}
	entries := map[model.SourceType]int{}
	inLedger := map[model.SourceType]map[string]bool{}
	for _, e := range auto {
		entries[e.SourceType]++
		if inLedger[e.SourceType] == nil {
			inLedger[e.SourceType] = map[string]bool{}
		}
		inLedger[e.SourceType][e.SourceID] = true
	}

	byType := map[model.SourceType]*Reconciliation{}
	seen := map[model.SourceType]map[string]bool{}
	get := func(st model.SourceType) *Reconciliation {
		if rc, ok := byType[st]; ok {
			return rc
		}
		rc := &Reconciliation{SourceType: st, Entries: entries[st]}
		byType[st] = rc
		seen[st] = map[string]bool{}
		return rc
	}

	for _, a := range attempts {
		rc := get(a.SourceType)
		switch a.Outcome {
		case postlog.OutcomePosted:
			rc.Posted++
		case postlog.OutcomeSkipped:
			rc.Skipped++
		case postlog.OutcomeInvalid:
			rc.Invalid++
		case postlog.OutcomeFailed:
			rc.Failed++
		}
		if seen[a.SourceType][a.SourceID] {
			continue
		}
		seen[a.SourceType][a.SourceID] = true
		rc.Events++
	}
	for st := range entries {
		get(st)
	}

	var out []Reconciliation
	for st, rc := range byType {
		for id := range seen[st] {
			if !inLedger[st][id] {
				rc.Missing = append(rc.Missing, id)
			}
		}
		sort.Strings(rc.Missing)
		out = append(out, *rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceType < out[j].SourceType })
	return out, nil
}
