package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidTimeframe   = goerr.New("invalid timeframe")
	ErrInvalidGranularity = goerr.New("invalid granularity")
)

// Timeframe is a relative date-range filter over conversation timestamps.
type Timeframe string

const (
	TimeframeAllTime   Timeframe = "All time"
	TimeframeLastMonth Timeframe = "1 month"
	TimeframeLastWeek  Timeframe = "1 week"
)

// Validate checks if the timeframe is valid
func (t Timeframe) Validate() error {
	switch t {
	case TimeframeAllTime, TimeframeLastMonth, TimeframeLastWeek:
		return nil
	default:
		return goerr.Wrap(ErrInvalidTimeframe, "unknown timeframe", goerr.V("timeframe", t))
	}
}

// Since returns the inclusive lower bound of the timeframe relative to now.
// A zero time means unbounded (all time).
func (t Timeframe) Since(now time.Time) time.Time {
	switch t {
	case TimeframeLastMonth:
		return now.AddDate(0, 0, -30)
	case TimeframeLastWeek:
		return now.AddDate(0, 0, -7)
	default:
		return time.Time{}
	}
}

// Granularity is the bin length used to group timestamps for aggregation.
type Granularity string

const (
	GranularityDay   Granularity = "Day"
	GranularityWeek  Granularity = "Week"
	GranularityMonth Granularity = "Month"
)

// Validate checks if the granularity is valid
func (g Granularity) Validate() error {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth:
		return nil
	default:
		return goerr.Wrap(ErrInvalidGranularity, "unknown granularity", goerr.V("granularity", g))
	}
}
