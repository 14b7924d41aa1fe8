// ABOUTME: Prompt text for the visualization generation stages.
// ABOUTME: Enumerates every spec variant with an example envelope and the extraction rules.

package generate

import (
	"fmt"
	"strings"

	"github.com/2389-research/calquity/citation"
)

// MaxContext bounds the answer text handed to the text stage, in runes.
const MaxContext = 3500

// TextTemperature keeps the text stage close to the source figures.
const TextTemperature = 0.2

const componentPrompt = `You turn document answers into one data visualization. Use only figures that appear in the source material.

RULES:
1. Use real numbers, percentages, and amounts from the source. Never invent placeholder values.
2. Revenue, profit, or growth figures belong in a BarChart or MetricCard.
3. Shares of a whole belong in a PieChart.
4. Several metrics side by side belong in a Table.
5. Every chart point needs a numeric value taken from the source.

Components:

MetricCard: one headline metric and its change
{"component": "MetricCard", "props": {"title": "Revenue Growth", "value": "$2.4B", "change": "+15.2%", "color": "green"}}

BarChart: compare values, at least two points
{"component": "BarChart", "props": {"title": "Quarterly Revenue", "data": [{"label": "Q1", "value": 12500}, {"label": "Q2", "value": 14200}, {"label": "Q3", "value": 15800}]}}

LineChart: a trend over time
{"component": "LineChart", "props": {"title": "Share Price", "data": [{"label": "Jan", "value": 245}, {"label": "Feb", "value": 252}]}}

PieChart: proportions, values are percentages
{"component": "PieChart", "props": {"title": "Revenue Mix", "data": [{"label": "Digital", "value": 45}, {"label": "Retail", "value": 30}, {"label": "Energy", "value": 25}]}}

Table: structured comparison
{"component": "Table", "props": {"title": "Key Metrics", "headers": ["Metric", "Value", "Change"], "rows": [["Revenue", "$2.3B", "+15%"], ["EBITDA", "$580M", "+11%"]]}}

InfoCard: only when the source has no figures at all
{"component": "InfoCard", "props": {"title": "Summary", "value": "Key finding", "icon": "📊"}}

Preference: BarChart > Table > MetricCard > PieChart > LineChart > InfoCard.
Reply with a single JSON object and nothing else.`

// SystemPrompt returns the variant enumeration and rules shared by both stages.
func SystemPrompt() string { return componentPrompt }

// VisionPrompt is the text part sent alongside the page image.
func VisionPrompt(query string) string {
	return fmt.Sprintf(`%s

User question: %q

Read the attached document page and pull out its figures:
- tables, charts, and financial amounts
- exact numbers, percentages, and currency values
- only data that answers the question
- at least three data points when charting

Reply with the JSON object only.`, componentPrompt, query)
}

// TextPrompt is the user message for the text stage.
func TextPrompt(query, answer string, cites []citation.Citation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User question: %q\n\nDocument content:\n%s\n", query, Truncate(answer, MaxContext))
	if len(cites) > 0 {
		b.WriteString("\nSOURCE EXCERPTS:\n")
		for _, c := range cites {
			b.WriteString(c.String())
			b.WriteByte('\n')
		}
	}
	b.WriteString(`
Build a BarChart, Table, or MetricCard from the real figures above.
Do not use placeholders such as "see details" or page numbers as values.

Visualization JSON:`)
	return b.String()
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
