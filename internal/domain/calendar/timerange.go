package calendar

import "fmt"

// HoursPerDay is the length of an in-game day in hours.
const HoursPerDay = 24

// TimeRange is the half-open hour interval [From, To). When From > To the
// range wraps past midnight, so TimeRange{20, 2} covers 20:00-01:59.
type TimeRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// NewTimeRange validates both bounds against [0,23].
func NewTimeRange(from, to int) (TimeRange, error) {
	if from < 0 || from >= HoursPerDay {
		return TimeRange{}, &InvalidTimeError{Hour: from, Message: fmt.Sprintf("range start %d outside [0,23]", from)}
	}
	if to < 0 || to >= HoursPerDay {
		return TimeRange{}, &InvalidTimeError{Hour: to, Message: fmt.Sprintf("range end %d outside [0,23]", to)}
	}
	return TimeRange{From: from, To: to}, nil
}

// MustTimeRange is NewTimeRange for static tables; it panics on bad bounds.
func MustTimeRange(from, to int) TimeRange {
	r, err := NewTimeRange(from, to)
	if err != nil {
		panic(err)
	}
	return r
}

// Wraps reports whether the range crosses midnight.
func (r TimeRange) Wraps() bool {
	return r.From > r.To
}

// TotalHours is the number of whole hours the range covers.
func (r TimeRange) TotalHours() int {
	if r.Wraps() {
		return (HoursPerDay - r.From) + r.To
	}
	return r.To - r.From
}

// Contains reports whether hour falls inside the range.
func (r TimeRange) Contains(hour int) bool {
	if r.Wraps() {
		return hour >= r.From || hour < r.To
	}
	return hour >= r.From && hour < r.To
}

// Overlaps reports whether the two ranges share at least one hour.
func (r TimeRange) Overlaps(other TimeRange) bool {
	for h := 0; h < HoursPerDay; h++ {
		if r.Contains(h) && other.Contains(h) {
			return true
		}
	}
	return false
}

func (r TimeRange) String() string {
	return fmt.Sprintf("%02d:00-%02d:00", r.From, r.To)
}
