package textgen

import (
	"errors"
	"testing"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"github.com/gastromap/location-enricher/pkg/pipeline/core"
	"google.golang.org/genai"
)

type timeoutNetErr struct{}

func (timeoutNetErr) Error() string   { return "i/o timeout" }
func (timeoutNetErr) Timeout() bool   { return true }
func (timeoutNetErr) Temporary() bool { return true }

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name          string
		in            error
		wantTransient bool
		wantKind      string
	}{
		{name: "api_429", in: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, wantKind: "quota"},
		{name: "api_500", in: genai.APIError{Code: 500, Status: "INTERNAL"}, wantTransient: true, wantKind: "provider"},
		{name: "api_400", in: genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}, wantKind: "provider"},
		{name: "net_timeout", in: timeoutNetErr{}, wantTransient: true, wantKind: "internal"},
		{name: "plain", in: errors.New("boom"), wantKind: "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyErr(tt.in)
			var te *core.TransientError
			if isTransient := errors.As(got, &te); isTransient != tt.wantTransient {
				t.Fatalf("transient=%v want=%v (err=%T %v)", isTransient, tt.wantTransient, got, got)
			}
			if kind := enrich.ErrorKind(got); kind != tt.wantKind {
				t.Fatalf("kind=%q want=%q", kind, tt.wantKind)
			}
		})
	}
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		`{"a":1}`:                 `{"a":1}`,
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
	}
	for in, want := range tests {
		if got := stripFences(in); got != want {
			t.Fatalf("stripFences(%q)=%q want=%q", in, got, want)
		}
	}
}
