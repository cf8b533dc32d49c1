package model

import "fmt"

// Interval is a kline bucket width. The labels match the feed's wire values
// and the kline_interval enum in the store.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval3d  Interval = "3d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

var intervals = []Interval{
	Interval1m, Interval3m, Interval5m, Interval15m, Interval30m,
	Interval1h, Interval2h, Interval4h, Interval6h, Interval8h, Interval12h,
	Interval1d, Interval3d, Interval1w, Interval1M,
}

// Intervals returns every supported interval, shortest first.
func Intervals() []Interval {
	out := make([]Interval, len(intervals))
	copy(out, intervals)
	return out
}

// ParseInterval converts a wire label into an Interval.
// Labels are case-sensitive: "1m" is one minute, "1M" is one month.
func ParseInterval(s string) (Interval, error) {
	for _, iv := range intervals {
		if string(iv) == s {
			return iv, nil
		}
	}
	return "", fmt.Errorf("unknown kline interval %q", s)
}

// String returns the wire label.
func (i Interval) String() string {
	return string(i)
}
