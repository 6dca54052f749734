// Package pricing estimates the USD cost of model calls from token counts.
package pricing

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultModel is the price row used for unknown models.
const DefaultModel = "gpt-4o-mini"

var perMillion = decimal.NewFromInt(1_000_000)

// Price is the USD cost per one million tokens.
type Price struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

func price(input, output string) Price {
	return Price{
		Input:  decimal.RequireFromString(input),
		Output: decimal.RequireFromString(output),
	}
}

var table = map[string]Price{
	"gpt-4o":                price("2.50", "10.00"),
	"gpt-4o-mini":           price("0.15", "0.60"),
	"gpt-4-turbo":           price("10.00", "30.00"),
	"gpt-4":                 price("30.00", "60.00"),
	"gpt-3.5-turbo":         price("0.50", "1.50"),
	"gpt-4.1":               price("2.00", "8.00"),
	"gpt-4.1-mini":          price("0.40", "1.60"),
	"o3-mini":               price("1.10", "4.40"),
	"claude-3-5-sonnet":     price("3.00", "15.00"),
	"claude-3-5-haiku":      price("0.80", "4.00"),
	"claude-3-opus":         price("15.00", "75.00"),
	"claude-3-haiku":        price("0.25", "1.25"),
	"claude-sonnet-4":       price("3.00", "15.00"),
	"gemini-1.5-pro":        price("1.25", "5.00"),
	"gemini-1.5-flash":      price("0.075", "0.30"),
	"gemini-2.0-flash":      price("0.10", "0.40"),
	"gemini-2.0-flash-lite": price("0.075", "0.30"),
}

// Lookup returns the price row for model. Exact names win; otherwise a
// dated or "-latest" id such as "gpt-4o-2024-08-06" resolves to the longest
// row it extends. Sibling models like "gpt-4.1-nano" do not match "gpt-4.1".
// ok is false when no row matched.
func Lookup(model string) (Price, bool) {
	if p, ok := table[model]; ok {
		return p, true
	}

	best := ""
	for name := range table {
		if versionOf(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return Price{}, false
	}
	return table[best], true
}

// versionOf reports whether model is name followed by a date or "-latest".
func versionOf(model, name string) bool {
	rest, ok := strings.CutPrefix(model, name)
	if !ok || len(rest) < 2 || rest[0] != '-' {
		return false
	}
	return rest == "-latest" || (rest[1] >= '0' && rest[1] <= '9')
}

// EstimateDecimal returns the exact cost of a call.
func EstimateDecimal(model string, promptTokens, completionTokens int) decimal.Decimal {
	p, ok := Lookup(model)
	if !ok {
		p = table[DefaultModel]
	}

	input := p.Input.Mul(decimal.NewFromInt(int64(promptTokens))).Div(perMillion)
	output := p.Output.Mul(decimal.NewFromInt(int64(completionTokens))).Div(perMillion)
	return input.Add(output)
}

// Estimate returns the USD cost of a call. Unknown models are priced as DefaultModel.
func Estimate(model string, promptTokens, completionTokens int) float64 {
	return EstimateDecimal(model, promptTokens, completionTokens).InexactFloat64()
}

// Models lists the priced model names in order.
func Models() []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
