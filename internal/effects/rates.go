package effects

import "time"

// Seasons recognized by the rate table.
const (
	SeasonHigh = "high"
	SeasonLow  = "low"
)

// SeasonFor maps a check-in date to a pricing season.  June through August
// and December are high season.
func SeasonFor(t time.Time) string {
	switch t.Month() {
	case time.June, time.July, time.August, time.December:
		return SeasonHigh
	}
	return SeasonLow
}

// RateTable computes loyalty points for a completed stay.  It is read-only
// configuration loaded at startup and treated as immutable.
type RateTable interface {
	PointsFor(roomCategory, season string, nights int) int
}

// StaticRateTable is a RateTable backed by a per-night rate map keyed by
// room category and season.  Unknown categories fall back to DefaultRate.
type StaticRateTable struct {
	PerNight    map[string]map[string]int // category -> season -> points per night
	DefaultRate int
}

// PointsFor returns the total points for a stay: the per-night rate for
// the category and season times the number of nights.
func (t *StaticRateTable) PointsFor(roomCategory, season string, nights int) int {
	if nights <= 0 {
		return 0
	}
	rate := t.DefaultRate
	if seasons, ok := t.PerNight[roomCategory]; ok {
		if r, ok := seasons[season]; ok {
			rate = r
		}
	}
	return rate * nights
}
