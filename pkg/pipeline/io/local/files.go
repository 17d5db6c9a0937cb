// Package local reads venue records from and writes enrichment results to local files.
package local

import (
	"fmt"
	"os"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/pipeline/schema"
)

// ReadLocationsFile reads path in the given format (CSV or JSON).
func ReadLocationsFile(path string, format schema.Format) ([]enrich.LocationRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	switch format {
	case schema.FormatJSON:
		return ReadLocationsJSON(f)
	case schema.FormatCSV:
		return ReadLocationsCSV(f)
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
}

// WriteResultsFile writes results to path in the given format (CSV or JSON).
func WriteResultsFile(path string, format schema.Format, results []*enrich.Result) error {
	write := WriteResultsCSV
	switch format {
	case schema.FormatJSON:
		write = WriteResultsJSON
	case schema.FormatCSV:
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	if err := write(f, results); err != nil {
		return err
	}
	return f.Close()
}
