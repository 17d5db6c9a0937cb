package metrics

import (
	"strings"

	"github.com/gastromap/location-enricher/pkg/enrich"
)

// ErrorClass buckets a result error message into a low-cardinality label value.
func ErrorClass(msg string) string {
	switch m := strings.ToLower(msg); {
	case m == "not configured":
		return "not_configured"
	case msg == enrich.MsgPlaceNotFound:
		return "not_found"
	case strings.HasPrefix(m, "quota exceeded"):
		return "quota"
	case strings.HasPrefix(m, "timeout:"):
		return "timeout"
	case strings.HasPrefix(m, "batch cancelled"):
		return "cancelled"
	case strings.HasPrefix(m, "parse structured output"):
		return "parse"
	case strings.Contains(m, " error: "):
		return "provider"
	default:
		return "other"
	}
}
