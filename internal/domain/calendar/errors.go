package calendar

import "fmt"

// InvalidTimeError reports an hour/minute pair (or minute count) outside the
// range a clock operation accepts. The operation that returns it leaves all
// state unchanged.
type InvalidTimeError struct {
	Hour    int
	Minute  int
	Message string
}

func (e *InvalidTimeError) Error() string {
	if e.Message != "" {
		return "invalid time: " + e.Message
	}
	return fmt.Sprintf("invalid time %02d:%02d", e.Hour, e.Minute)
}

// ValidateTime checks hour ∈ [0,23] and minute ∈ [0,59].
func ValidateTime(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return &InvalidTimeError{Hour: hour, Minute: minute, Message: fmt.Sprintf("hour %d outside [0,23]", hour)}
	}
	if minute < 0 || minute > 59 {
		return &InvalidTimeError{Hour: hour, Minute: minute, Message: fmt.Sprintf("minute %d outside [0,59]", minute)}
	}
	return nil
}
