package types

import (
	"fmt"
	"time"
)

// UsageBucket is one quota window as reported by the usage endpoint.
type UsageBucket struct {
	Utilization float64   `json:"utilization"`
	ResetsAt    time.Time `json:"resets_at"`
}

// Percentage returns the utilization as a display integer clamped to 0-100.
func (b UsageBucket) Percentage() int {
	switch {
	case b.Utilization <= 0:
		return 0
	case b.Utilization >= 100:
		return 100
	default:
		return int(b.Utilization)
	}
}

// TimeUntilReset formats the remaining window time as a short countdown,
// e.g. "2d3h", "4h05m", "12m".
func (b UsageBucket) TimeUntilReset(now time.Time) string {
	d := b.ResetsAt.Sub(now)
	if d < 0 {
		return "now"
	}
	d = d.Round(time.Minute)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh%02dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

// ExtraUsage reports whether pay-as-you-go overflow is enabled on the
// account.
type ExtraUsage struct {
	IsEnabled bool `json:"is_enabled"`
}

// UsageSnapshot is one coherent read of the account's quota windows.
// Snapshots are immutable once constructed and replaced wholesale on
// each successful fetch; a partially decoded response is never published.
type UsageSnapshot struct {
	FiveHour     UsageBucket  `json:"five_hour"`
	SevenDay     UsageBucket  `json:"seven_day"`
	SevenDayOpus *UsageBucket `json:"seven_day_opus,omitempty"`
	ExtraUsage   ExtraUsage   `json:"extra_usage"`
	FetchedAt    time.Time    `json:"-"`
}
