package parser

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDate reports calendar input that cannot form a valid date.
var ErrInvalidDate = errors.New("invalid calendar date")

const dateLayout = "2006-01-02T15:04:05"

// FromYear returns the ISO 8601 timestamp of midnight on January 1st of the
// given year, e.g. FromYear(1977) == "1977-01-01T00:00:00".
func FromYear(year int) (string, error) {
	return FromYearMonth(year, 1)
}

// FromYearMonth returns the ISO 8601 timestamp of midnight on the first day
// of the given month.
func FromYearMonth(year, month int) (string, error) {
	if year < 1 || year > 9999 {
		return "", fmt.Errorf("%w: year %d", ErrInvalidDate, year)
	}
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: month %d", ErrInvalidDate, month)
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format(dateLayout), nil
}
