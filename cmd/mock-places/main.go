package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gastromap/location-enricher/pkg/mockplaces"
)

func main() {
	addr := defaultString("MOCK_PLACES_ADDR", ":8090")
	fixtures := defaultString("MOCK_PLACES_FIXTURES", "")
	requireKey := defaultString("MOCK_PLACES_REQUIRE_KEY", "")

	fs := flag.NewFlagSet("mock-places", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&fixtures, "fixtures", fixtures, "Directory of *.json place fixtures (also supports env: MOCK_PLACES_FIXTURES)")
	fs.StringVar(&requireKey, "require-key", requireKey, "Reject requests whose key parameter differs from this value")
	_ = fs.Parse(os.Args[1:])

	srv := mockplaces.New()
	if requireKey != "" {
		srv.RequireKey(requireKey)
	}
	if fixtures != "" {
		if err := srv.LoadFixtures(fixtures); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "load fixtures: %v\n", err)
			os.Exit(1)
		}
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-places listening on %s (fixtures=%s)\n", addr, fixtures)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
