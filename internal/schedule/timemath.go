package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Time parsing errors.
var (
	ErrParseTime = errors.New("invalid time of day")
)

// timeHHMMRegex validates H:MM / HH:MM clock times.
var timeHHMMRegex = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

const minutesPerDay = 24 * 60

// ToMinutes parses an H:MM or HH:MM clock time into minutes since midnight.
// Malformed input fails with ErrParseTime rather than coercing to zero, so a
// bad time can never be mistaken for midnight downstream.
func ToMinutes(hhmm string) (int, error) {
	if !timeHHMMRegex.MatchString(hhmm) {
		return 0, fmt.Errorf("%w: %q", ErrParseTime, hhmm)
	}
	parts := strings.SplitN(hhmm, ":", 2)
	hours, _ := strconv.Atoi(parts[0])
	minutes, _ := strconv.Atoi(parts[1])
	return hours*60 + minutes, nil
}

// DurationMinutes returns end minus start in minutes. The result is negative
// when end precedes start; rejecting that is validation's job, not this
// helper's.
func DurationMinutes(start, end string) (int, error) {
	startMin, err := ToMinutes(start)
	if err != nil {
		return 0, err
	}
	endMin, err := ToMinutes(end)
	if err != nil {
		return 0, err
	}
	return endMin - startMin, nil
}

// AddMinutes adds a number of minutes to a clock time, wrapping at midnight.
// The result stays on the same nominal day; overnight ranges are rejected by
// validation upstream so the wrap is never observable through the API.
func AddMinutes(start string, minutes int) (string, error) {
	startMin, err := ToMinutes(start)
	if err != nil {
		return "", err
	}
	total := (startMin + minutes) % minutesPerDay
	if total < 0 {
		total += minutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60), nil
}

// Overlaps reports whether two half-open minute ranges [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching ranges do not overlap, and zero-length
// ranges overlap nothing, including themselves.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	if aStart >= aEnd || bStart >= bEnd {
		return false
	}
	return aStart < bEnd && bStart < aEnd
}

// OverlapsTimes is Overlaps over HH:MM strings. Any unparseable input fails
// with ErrParseTime.
func OverlapsTimes(aStart, aEnd, bStart, bEnd string) (bool, error) {
	aStartMin, err := ToMinutes(aStart)
	if err != nil {
		return false, err
	}
	aEndMin, err := ToMinutes(aEnd)
	if err != nil {
		return false, err
	}
	bStartMin, err := ToMinutes(bStart)
	if err != nil {
		return false, err
	}
	bEndMin, err := ToMinutes(bEnd)
	if err != nil {
		return false, err
	}
	return Overlaps(aStartMin, aEndMin, bStartMin, bEndMin), nil
}
