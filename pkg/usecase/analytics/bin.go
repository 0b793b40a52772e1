package analytics

import (
	"time"

	"github.com/m-mizutani/listener/pkg/model"
)

// BinStart truncates a timestamp to the start of its bin. Day bins start at
// midnight, week bins on Monday and month bins on the first of the month,
// all in the timestamp's location.
func BinStart(t time.Time, granularity model.Granularity) time.Time {
	switch granularity {
	case model.GranularityWeek:
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		offset := (int(midnight.Weekday()) + 6) % 7 // days since Monday
		return midnight.AddDate(0, 0, -offset)
	case model.GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

// BinByPeriod counts timestamps per bin
func BinByPeriod(timestamps []time.Time, granularity model.Granularity) map[time.Time]int {
	bins := map[time.Time]int{}
	for _, ts := range timestamps {
		bins[BinStart(ts, granularity)]++
	}
	return bins
}

// BinTagsByPeriod counts active tags per (bin, tag) pair. Inactive flags do
// not contribute.
func BinTagsByPeriod(rows []*model.TaggedConversation, granularity model.Granularity) map[time.Time]map[string]int {
	bins := map[time.Time]map[string]int{}
	for _, row := range rows {
		start := BinStart(row.CreatedAt, granularity)
		for tag, active := range row.Active {
			if !active {
				continue
			}
			if bins[start] == nil {
				bins[start] = map[string]int{}
			}
			bins[start][tag]++
		}
	}
	return bins
}
