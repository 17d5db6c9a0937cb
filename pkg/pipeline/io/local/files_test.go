package local_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gastromap/location-enricher/pkg/pipeline/io/local"
	"github.com/gastromap/location-enricher/pkg/pipeline/schema"
)

func TestReadLocationsFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "in.csv")
	if err := os.WriteFile(csvPath, []byte("name,city,country\nHamsa,Krakow,Poland\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := local.ReadLocationsFile(csvPath, schema.FormatForPath(csvPath, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].City != "Krakow" {
		t.Fatalf("unexpected rows: %#v", got)
	}

	if _, err := local.ReadLocationsFile(filepath.Join(dir, "missing.csv"), schema.FormatCSV); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := local.ReadLocationsFile(csvPath, schema.FormatSQLite); err == nil {
		t.Fatalf("expected error for sqlite input")
	}
}
