// ABOUTME: Terminal renderer for visualization specs, the one place a spec becomes a view.
// ABOUTME: An exhaustive switch over the variants; anything else is an UnsupportedVariantError.

package viz

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	valueStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	upStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	downStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// namedColors maps the color names generators emit onto terminal colors.
var namedColors = map[string]lipgloss.Color{
	"blue":   "75",
	"green":  "42",
	"red":    "196",
	"orange": "214",
	"yellow": "226",
	"purple": "170",
	"gray":   "245",
	"grey":   "245",
}

func accent(name string) lipgloss.Color {
	if c, ok := namedColors[strings.ToLower(name)]; ok {
		return c
	}
	if strings.HasPrefix(name, "#") {
		return lipgloss.Color(name)
	}
	return "62"
}

// Render draws s for a terminal of the given width.
func Render(s Spec, width int) (string, error) {
	if width < 24 {
		width = 24
	}
	switch v := s.Variant.(type) {
	case InfoCard:
		return renderInfoCard(v, width), nil
	case MetricCard:
		return renderMetricCard(v, width), nil
	case BarChart:
		return renderBars(v.Series, width), nil
	case LineChart:
		return renderLine(v.Series, width), nil
	case PieChart:
		return renderPie(v.Series, width), nil
	case Table:
		return renderTable(v, width), nil
	case nil:
		return "", &UnsupportedVariantError{}
	default:
		return "", &UnsupportedVariantError{Kind: v.Kind()}
	}
}

func renderInfoCard(c InfoCard, width int) string {
	head := c.Title
	if c.Icon != "" {
		head = c.Icon + " " + head
	}
	body := titleStyle.Render(head) + "\n" + valueStyle.Render(string(c.Value))
	return cardStyle.BorderForeground(accent(c.Color)).MaxWidth(width).Render(body)
}

func renderMetricCard(c MetricCard, width int) string {
	body := labelStyle.Render(c.Title) + "\n" + valueStyle.Render(string(c.Value))
	if c.Change != "" {
		style := upStyle
		if strings.HasPrefix(strings.TrimSpace(c.Change), "-") {
			style = downStyle
		}
		body += "  " + style.Render(c.Change)
	}
	return cardStyle.BorderForeground(accent(c.Color)).MaxWidth(width).Render(body)
}

func renderBars(s Series, width int) string {
	labelWidth := maxLabelWidth(s.Data, width/3)
	barWidth := width - labelWidth - 14
	if barWidth < 4 {
		barWidth = 4
	}
	peak := 0.0
	for _, d := range s.Data {
		peak = math.Max(peak, math.Abs(d.Value))
	}
	bar := lipgloss.NewStyle().Foreground(accent(s.Color))

	var b strings.Builder
	writeTitle(&b, s.Title)
	for _, d := range s.Data {
		n := 0
		if peak > 0 {
			n = int(math.Round(math.Abs(d.Value) / peak * float64(barWidth)))
		}
		fmt.Fprintf(&b, "%s %s %s\n",
			labelStyle.Render(pad(d.Label, labelWidth)),
			bar.Render(strings.Repeat("█", n)),
			formatNumber(d.Value))
	}
	return strings.TrimRight(b.String(), "\n")
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

func renderLine(s Series, width int) string {
	if len(s.Data) == 0 {
		var b strings.Builder
		writeTitle(&b, s.Title)
		b.WriteString(labelStyle.Render("(no data)"))
		return b.String()
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, d := range s.Data {
		lo = math.Min(lo, d.Value)
		hi = math.Max(hi, d.Value)
	}
	var spark strings.Builder
	for _, d := range s.Data {
		idx := 0
		if hi > lo {
			idx = int((d.Value - lo) / (hi - lo) * float64(len(sparkLevels)-1))
		}
		spark.WriteRune(sparkLevels[idx])
	}

	var b strings.Builder
	writeTitle(&b, s.Title)
	b.WriteString(lipgloss.NewStyle().Foreground(accent(s.Color)).Render(spark.String()))
	b.WriteString("\n")
	first, last := s.Data[0], s.Data[len(s.Data)-1]
	b.WriteString(labelStyle.MaxWidth(width).Render(fmt.Sprintf("%s %s → %s %s",
		first.Label, formatNumber(first.Value), last.Label, formatNumber(last.Value))))
	return b.String()
}

func renderPie(s Series, width int) string {
	total := 0.0
	for _, d := range s.Data {
		total += math.Abs(d.Value)
	}
	labelWidth := maxLabelWidth(s.Data, width/3)
	barWidth := width - labelWidth - 12
	if barWidth < 4 {
		barWidth = 4
	}
	bar := lipgloss.NewStyle().Foreground(accent(s.Color))

	var b strings.Builder
	writeTitle(&b, s.Title)
	for _, d := range s.Data {
		share := 0.0
		if total > 0 {
			share = math.Abs(d.Value) / total
		}
		fmt.Fprintf(&b, "%s %s %5.1f%%\n",
			labelStyle.Render(pad(d.Label, labelWidth)),
			bar.Render(strings.Repeat("■", int(math.Round(share*float64(barWidth))))),
			share*100)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTable(t Table, width int) string {
	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = string(c)
		}
		rows = append(rows, cells)
	}
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(t.Headers...).
		Rows(rows...)

	var b strings.Builder
	writeTitle(&b, t.Title)
	b.WriteString(tbl.String())
	return b.String()
}

func writeTitle(b *strings.Builder, title string) {
	if title == "" {
		return
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
}

func maxLabelWidth(data []DataPoint, limit int) int {
	w := 1
	for _, d := range data {
		w = max(w, lipgloss.Width(d.Label))
	}
	return min(w, max(limit, 4))
}

func pad(s string, width int) string {
	if lipgloss.Width(s) > width {
		r := []rune(s)
		if width > 1 && len(r) > width-1 {
			return string(r[:width-1]) + "…"
		}
		return s
	}
	return s + strings.Repeat(" ", width-lipgloss.Width(s))
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
