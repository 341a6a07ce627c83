package forecast

import (
	"time"

	"github.com/letsur-dev/claude-peak/internal/types"
)

const (
	FiveHourWindow = 5 * time.Hour
	SevenDayWindow = 7 * 24 * time.Hour
)

// Projection estimates where a quota window will land at reset,
// assuming the consumption rate so far holds.
type Projection struct {
	ProjectedPct float64
	OnTrack      bool
}

// Project extrapolates the bucket's utilization linearly over the
// full window. A window that just reset (or shows zero usage) projects
// to its current value.
func Project(b types.UsageBucket, windowLen time.Duration, now time.Time) Projection {
	remaining := b.ResetsAt.Sub(now)
	elapsed := windowLen - remaining

	if elapsed <= 0 || b.Utilization <= 0 {
		return Projection{ProjectedPct: b.Utilization, OnTrack: true}
	}

	rate := b.Utilization / elapsed.Seconds()
	projected := rate * windowLen.Seconds()

	return Projection{
		ProjectedPct: projected,
		OnTrack:      projected < 100,
	}
}

// Indicator is a short status word for display next to the projection.
func (p Projection) Indicator() string {
	switch {
	case p.ProjectedPct >= 100:
		return "over limit"
	case p.ProjectedPct >= 90:
		return "tight"
	default:
		return "on track"
	}
}
