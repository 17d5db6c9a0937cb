package objectstore

import (
	"sort"
	"time"

	"github.com/gastromap/location-enricher/pkg/enrich"
)

// RunReport summarizes one enrichment run.
type RunReport struct {
	RunID      string    `json:"run_id"`
	Mode       string    `json:"mode"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Cached    int `json:"reused,omitempty"`

	// FieldCounts counts results per enriched field name.
	FieldCounts map[string]int `json:"field_counts"`
	// TopErrors lists the most frequent error messages, most frequent first.
	TopErrors []ErrorCount `json:"top_errors,omitempty"`

	Results []*enrich.Result `json:"results,omitempty"`
}

// ErrorCount is one distinct error message and how often it occurred.
type ErrorCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

const maxTopErrors = 10

// BuildReport summarizes results. includeResults embeds the full result list.
func BuildReport(runID, mode string, started, finished time.Time, results []*enrich.Result, includeResults bool) RunReport {
	rep := RunReport{
		RunID:       runID,
		Mode:        mode,
		StartedAt:   started.UTC(),
		FinishedAt:  finished.UTC(),
		FieldCounts: make(map[string]int),
	}

	errCounts := make(map[string]int)
	for _, r := range results {
		if r == nil {
			continue
		}
		rep.Total++
		if r.Metadata.Success {
			rep.Succeeded++
		} else {
			rep.Failed++
		}
		for _, f := range r.Metadata.FieldsEnriched {
			rep.FieldCounts[f]++
		}
		for _, e := range r.Metadata.Errors {
			errCounts[e]++
		}
	}

	for msg, n := range errCounts {
		rep.TopErrors = append(rep.TopErrors, ErrorCount{Message: msg, Count: n})
	}
	sort.Slice(rep.TopErrors, func(i, j int) bool {
		if rep.TopErrors[i].Count != rep.TopErrors[j].Count {
			return rep.TopErrors[i].Count > rep.TopErrors[j].Count
		}
		return rep.TopErrors[i].Message < rep.TopErrors[j].Message
	})
	if len(rep.TopErrors) > maxTopErrors {
		rep.TopErrors = rep.TopErrors[:maxTopErrors]
	}

	if includeResults {
		rep.Results = results
	}
	return rep
}
