package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/letsur-dev/claude-peak/internal/forecast"
	"github.com/letsur-dev/claude-peak/internal/types"
)

var (
	colGreen, _  = colorful.Hex("#2ecc71")
	colYellow, _ = colorful.Hex("#f1c40f")
	colRed, _    = colorful.Hex("#e74c3c")
)

// PercentColor blends green through yellow to red as a window fills.
func PercentColor(utilization float64) lipgloss.Color {
	t := utilization / 100
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	var c colorful.Color
	if t < 0.5 {
		c = colGreen.BlendLab(colYellow, t*2)
	} else {
		c = colYellow.BlendLab(colRed, (t-0.5)*2)
	}
	return lipgloss.Color(c.Hex())
}

// Bar renders a fixed-width utilization bar.
func Bar(utilization float64, width int) string {
	filled := int(utilization/100*float64(width) + 0.5)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// FormatUsageTable renders the snapshot's quota windows as a table.
func FormatUsageTable(snap *types.UsageSnapshot, delta float64, now time.Time, noColor bool) string {
	var buf bytes.Buffer

	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Settings: tw.Settings{Separators: tw.Separators{BetweenRows: tw.On}},
		})),
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)

	table.Header([]string{"Window", "Used", "", "Resets in"})

	appendBucket := func(label string, b types.UsageBucket) {
		pct := fmt.Sprintf("%d%%", b.Percentage())
		if !noColor {
			pct = lipgloss.NewStyle().Foreground(PercentColor(b.Utilization)).Render(pct)
		}
		table.Append([]string{label, pct, Bar(b.Utilization, 20), b.TimeUntilReset(now)})
	}

	appendBucket("5-hour", snap.FiveHour)
	appendBucket("7-day", snap.SevenDay)
	if snap.SevenDayOpus != nil {
		appendBucket("7-day Opus", *snap.SevenDayOpus)
	}

	table.Render()

	extra := "Disabled"
	if snap.ExtraUsage.IsEnabled {
		extra = "Enabled"
	}
	fmt.Fprintf(&buf, "\nExtra usage: %s\n", extra)
	if delta > 0 {
		fmt.Fprintf(&buf, "Delta: +%.1f%% since last poll\n", delta)
	}

	proj := forecast.Project(snap.FiveHour, forecast.FiveHourWindow, now)
	fmt.Fprintf(&buf, "5-hour projection: %.0f%% at reset (%s)\n", proj.ProjectedPct, proj.Indicator())
	return buf.String()
}
