package app

import (
	"fmt"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/enrich/cache"
)

// resumePlan splits input records into ones answered by a prior successful result and ones
// that still need enrichment, and stitches fresh results back into input order.
type resumePlan struct {
	results    []*enrich.Result
	pending    []enrich.LocationRecord
	pendingIdx []int
	reused     int
}

func buildResumePlan(records []enrich.LocationRecord, prior map[string]*enrich.Result) resumePlan {
	plan := resumePlan{results: make([]*enrich.Result, len(records))}
	for i, rec := range records {
		if prev, ok := prior[cache.Key(rec)]; ok && prev != nil && prev.Metadata.Success {
			plan.results[i] = prev
			plan.reused++
			continue
		}
		plan.pending = append(plan.pending, rec)
		plan.pendingIdx = append(plan.pendingIdx, i)
	}
	return plan
}

func (p *resumePlan) apply(fresh []*enrich.Result) error {
	if len(fresh) != len(p.pending) {
		return fmt.Errorf("resume mismatch: got %d results for %d pending records", len(fresh), len(p.pending))
	}
	for i, idx := range p.pendingIdx {
		p.results[idx] = fresh[i]
	}
	return nil
}

// freshResults returns only the results produced in this run, in input order.
func (p *resumePlan) freshResults() []*enrich.Result {
	out := make([]*enrich.Result, 0, len(p.pendingIdx))
	for _, idx := range p.pendingIdx {
		if p.results[idx] != nil {
			out = append(out, p.results[idx])
		}
	}
	return out
}

// resultsForOutput returns what a sink should receive: an append-only store only needs the
// fresh results, a file gets the full run.
func (p *resumePlan) resultsForOutput(appendOnly bool) []*enrich.Result {
	if appendOnly {
		return p.freshResults()
	}
	return p.results
}
