// Package mockplaces serves a minimal Google-Places-like API from in-memory fixtures, for local
// runs and end-to-end tests.
package mockplaces

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Call records a request made to the mock service. The key parameter is never recorded.
type Call struct {
	Method string
	Path   string
	Query  url.Values
}

// Place is a fixture venue.
type Place struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address,omitempty"`
	Lat              *float64 `json:"lat,omitempty"`
	Lng              *float64 `json:"lng,omitempty"`
	Rating           *float64 `json:"rating,omitempty"`
	RatingsTotal     *int     `json:"user_ratings_total,omitempty"`
	PriceLevel       *int     `json:"price_level,omitempty"`
	Website          string   `json:"website,omitempty"`
	Phone            string   `json:"formatted_phone_number,omitempty"`
	WeekdayText      []string `json:"weekday_text,omitempty"`
	OpenNow          *bool    `json:"open_now,omitempty"`
	PhotoRefs        []string `json:"photo_refs,omitempty"`
}

// Server implements the textsearch, details and photo endpoints.
type Server struct {
	mu     sync.Mutex
	calls  []Call
	places map[string]Place

	apiKey string

	// forced overrides the provider status per endpoint ("textsearch", "details").
	forced map[string]string
	// forcedHTTP overrides the HTTP status code per endpoint.
	forcedHTTP map[string]int
}

// New constructs an empty mock server.
func New() *Server {
	return &Server{
		places:     make(map[string]Place),
		forced:     make(map[string]string),
		forcedHTTP: make(map[string]int),
	}
}

// RequireKey makes every endpoint answer REQUEST_DENIED unless the key parameter matches.
// An empty key disables the check.
func (s *Server) RequireKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = strings.TrimSpace(key)
}

// AddPlace registers a fixture venue.
func (s *Server) AddPlace(p Place) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.places[p.PlaceID] = p
}

// LoadFixtures reads every *.json file in dir. Each file holds either one Place or a list.
func (s *Server) LoadFixtures(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return err
	}
	for _, path := range matches {
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read fixture %s: %w", path, err)
		}
		var list []Place
		if err := json.Unmarshal(b, &list); err != nil {
			var one Place
			if err := json.Unmarshal(b, &one); err != nil {
				return fmt.Errorf("parse fixture %s: %w", path, err)
			}
			list = []Place{one}
		}
		for _, p := range list {
			if strings.TrimSpace(p.PlaceID) == "" {
				return fmt.Errorf("fixture %s: place_id is required", path)
			}
			s.AddPlace(p)
		}
	}
	return nil
}

// ForceStatus makes endpoint ("textsearch" or "details") answer with the given provider status,
// e.g. OVER_QUERY_LIMIT. An empty status clears the override.
func (s *Server) ForceStatus(endpoint, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == "" {
		delete(s.forced, endpoint)
		return
	}
	s.forced[endpoint] = status
}

// ForceHTTPStatus makes endpoint answer with a bare HTTP status code. Zero clears it.
func (s *Server) ForceHTTPStatus(endpoint string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code == 0 {
		delete(s.forcedHTTP, endpoint)
		return
	}
	s.forcedHTTP[endpoint] = code
}

// Handler returns an http.Handler that serves the mock API under /maps/api/place.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/maps/api/place/textsearch/json", s.handleTextSearch)
	mux.HandleFunc("/maps/api/place/details/json", s.handleDetails)
	mux.HandleFunc("/maps/api/place/photo", s.handlePhoto)
	return mux
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Server) recordCall(r *http.Request) {
	q := r.URL.Query()
	q.Del("key")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Query: q})
}

// preflight records the call and applies key checks and forced responses. It reports whether
// the handler should continue.
func (s *Server) preflight(w http.ResponseWriter, r *http.Request, endpoint string) bool {
	s.recordCall(r)
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}

	s.mu.Lock()
	key := s.apiKey
	forced := s.forced[endpoint]
	forcedHTTP := s.forcedHTTP[endpoint]
	s.mu.Unlock()

	if forcedHTTP != 0 {
		http.Error(w, http.StatusText(forcedHTTP), forcedHTTP)
		return false
	}
	if key != "" && r.URL.Query().Get("key") != key {
		writeJSON(w, map[string]any{
			"status":        "REQUEST_DENIED",
			"error_message": "The provided API key is invalid.",
		})
		return false
	}
	if forced != "" {
		writeJSON(w, map[string]any{"status": forced, "error_message": "forced by mock"})
		return false
	}
	return true
}

func (s *Server) handleTextSearch(w http.ResponseWriter, r *http.Request) {
	if !s.preflight(w, r, "textsearch") {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeJSON(w, map[string]any{"status": "INVALID_REQUEST"})
		return
	}

	matches := s.match(query)
	if len(matches) == 0 {
		writeJSON(w, map[string]any{"status": "ZERO_RESULTS", "results": []any{}})
		return
	}
	results := make([]map[string]any, 0, len(matches))
	for _, p := range matches {
		results = append(results, summaryJSON(p))
	}
	writeJSON(w, map[string]any{"status": "OK", "results": results})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	if !s.preflight(w, r, "details") {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("place_id"))

	s.mu.Lock()
	p, ok := s.places[id]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, map[string]any{"status": "NOT_FOUND"})
		return
	}

	result := summaryJSON(p)
	if p.Website != "" {
		result["website"] = p.Website
	}
	if p.Phone != "" {
		result["formatted_phone_number"] = p.Phone
	}
	if len(p.WeekdayText) > 0 || p.OpenNow != nil {
		hours := map[string]any{"weekday_text": p.WeekdayText}
		if p.OpenNow != nil {
			hours["open_now"] = *p.OpenNow
		}
		result["opening_hours"] = hours
	}
	writeJSON(w, map[string]any{"status": "OK", "result": result})
}

func (s *Server) handlePhoto(w http.ResponseWriter, r *http.Request) {
	if !s.preflight(w, r, "photo") {
		return
	}
	ref := strings.TrimSpace(r.URL.Query().Get("photo_reference"))
	if ref == "" {
		http.Error(w, "photo_reference is required", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	// SOI/EOI markers only.
	_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF, 0xD9})
}

// match returns fixtures whose name appears in the query, in place id order.
func (s *Server) match(query string) []Place {
	q := strings.ToLower(query)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Place
	for _, p := range s.places {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name != "" && strings.Contains(q, name) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlaceID < out[j].PlaceID })
	return out
}

func summaryJSON(p Place) map[string]any {
	out := map[string]any{
		"place_id": p.PlaceID,
		"name":     p.Name,
	}
	if p.FormattedAddress != "" {
		out["formatted_address"] = p.FormattedAddress
	}
	if p.Lat != nil && p.Lng != nil {
		out["geometry"] = map[string]any{"location": map[string]any{"lat": *p.Lat, "lng": *p.Lng}}
	}
	if p.Rating != nil {
		out["rating"] = *p.Rating
	}
	if p.RatingsTotal != nil {
		out["user_ratings_total"] = *p.RatingsTotal
	}
	if p.PriceLevel != nil {
		out["price_level"] = *p.PriceLevel
	}
	if len(p.PhotoRefs) > 0 {
		photos := make([]map[string]any, 0, len(p.PhotoRefs))
		for _, ref := range p.PhotoRefs {
			photos = append(photos, map[string]any{"photo_reference": ref, "width": 1600, "height": 1200})
		}
		out["photos"] = photos
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
