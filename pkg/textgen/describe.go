package textgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/gastromap/location-enricher/pkg/enrich"
	"google.golang.org/genai"
)

var _ enrich.Describer = (*Client)(nil)

var descriptionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"description": {Type: genai.TypeString},
	},
	Required: []string{"description"},
}

const describeSystem = `You write short, factual venue descriptions for a restaurant and cafe guide.
Use only the facts provided. Do not invent awards, dishes or history.
Write two or three sentences in English, at most 60 words.`

// DescribeVenue writes a short description of the venue. A response that is not valid JSON
// is returned as *enrich.ParseError.
func (c *Client) DescribeVenue(ctx context.Context, rec enrich.LocationRecord, details *enrich.PlaceDetails) (string, error) {
	out, err := c.Generate(ctx, Request{
		Prompt:            buildDescribePrompt(rec, details),
		SystemInstruction: describeSystem,
		Schema:            descriptionSchema,
	})
	if err != nil {
		return "", err
	}
	if out.ParseErr != nil {
		return "", out.ParseErr
	}
	return out.String("description"), nil
}

func buildDescribePrompt(rec enrich.LocationRecord, details *enrich.PlaceDetails) string {
	var b strings.Builder
	b.WriteString("Describe this venue.\n\n")
	line := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, v)
		}
	}
	line("Name", rec.Name)
	line("Address", rec.Address)
	line("City", rec.City)
	line("Country", rec.Country)
	line("Price range", rec.PriceRange)
	line("Website", rec.Website)

	if details != nil {
		line("Formatted address", details.FormattedAddress)
		if details.Rating != nil {
			line("Google rating", fmt.Sprintf("%.1f", *details.Rating))
		}
		if pr := enrich.ConvertPriceLevel(details.PriceLevel); pr != "" && strings.TrimSpace(rec.PriceRange) == "" {
			line("Price range", pr)
		}
		if len(details.WeekdayText) > 0 {
			line("Opening hours", strings.Join(details.WeekdayText, "; "))
		}
	}
	b.WriteString("\nReturn JSON with a single key \"description\".")
	return b.String()
}
