package fulfillment

import (
	"fmt"
	"regexp"
	"strconv"
)

var dayRun = regexp.MustCompile(`\d+`)

// ParseDurationDays extracts the day count from a free-text duration field by
// taking the first maximal run of decimal digits: "5 días" -> 5, "10" -> 10.
// Returns ErrMalformedDuration when the text carries no digits.
func ParseDurationDays(duration string) (int, error) {
	match := dayRun.FindString(duration)
	if match == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedDuration, duration)
	}
	days, err := strconv.Atoi(match)
	if err != nil {
		// A digit run longer than an int can hold is still malformed data.
		return 0, fmt.Errorf("%w: %q", ErrMalformedDuration, duration)
	}
	return days, nil
}
