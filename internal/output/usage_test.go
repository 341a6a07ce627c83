package output

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/letsur-dev/claude-peak/internal/types"
)

func TestBar(t *testing.T) {
	assert.Equal(t, strings.Repeat("░", 20), Bar(0, 20))
	assert.Equal(t, strings.Repeat("█", 20), Bar(100, 20))
	assert.Equal(t, strings.Repeat("█", 20), Bar(150, 20), "over-limit clamps to full")
	assert.Equal(t, "██████████░░░░░░░░░░", Bar(50, 20))
}

func TestPercentColorEndpoints(t *testing.T) {
	assert.Equal(t, "#2ecc71", strings.ToLower(string(PercentColor(0))))
	assert.Equal(t, "#e74c3c", strings.ToLower(string(PercentColor(100))))
	assert.Equal(t, PercentColor(100), PercentColor(130), "clamped above 100")
}

func TestFormatUsageTable(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	opus := types.UsageBucket{Utilization: 12, ResetsAt: now.Add(48 * time.Hour)}
	snap := &types.UsageSnapshot{
		FiveHour:     types.UsageBucket{Utilization: 42.4, ResetsAt: now.Add(95 * time.Minute)},
		SevenDay:     types.UsageBucket{Utilization: 80, ResetsAt: now.Add(3 * 24 * time.Hour)},
		SevenDayOpus: &opus,
		ExtraUsage:   types.ExtraUsage{IsEnabled: true},
	}

	out := FormatUsageTable(snap, 1.5, now, true)
	assert.Contains(t, out, "42%")
	assert.Contains(t, out, "1h35m")
	assert.Contains(t, out, "7-day Opus")
	assert.Contains(t, out, "Extra usage: Enabled")
	assert.Contains(t, out, "Delta: +1.5%")
	assert.Contains(t, out, "5-hour projection:")
}

func TestFormatUsageTableOmitsOptionalParts(t *testing.T) {
	now := time.Now()
	snap := &types.UsageSnapshot{
		FiveHour: types.UsageBucket{Utilization: 5, ResetsAt: now.Add(time.Hour)},
		SevenDay: types.UsageBucket{Utilization: 1, ResetsAt: now.Add(time.Hour)},
	}

	out := FormatUsageTable(snap, 0, now, true)
	assert.NotContains(t, out, "Opus")
	assert.NotContains(t, out, "Delta:")
	assert.Contains(t, out, "Extra usage: Disabled")
}
