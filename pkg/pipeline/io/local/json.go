package local

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gastromap/location-enricher/pkg/enrich"
)

// ReadLocationsJSON reads venue records from either a bare JSON array or an object of the
// form {"locations": [...]}, the body shape of the batch endpoint.
func ReadLocationsJSON(r io.Reader) ([]enrich.LocationRecord, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("empty input")
	}

	var out []enrich.LocationRecord
	if b[0] == '[' {
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("parse locations: %w", err)
		}
		return out, nil
	}

	var doc struct {
		Locations []enrich.LocationRecord `json:"locations"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse locations: %w", err)
	}
	if doc.Locations == nil {
		return nil, fmt.Errorf("missing %q array", "locations")
	}
	return doc.Locations, nil
}

// WriteResultsJSON writes {"results": [...]} matching the batch endpoint response.
func WriteResultsJSON(w io.Writer, results []*enrich.Result) error {
	if results == nil {
		results = []*enrich.Result{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Results []*enrich.Result `json:"results"`
	}{Results: results})
}
