package binanceclient

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tradesim/internal/ports"
)

// ParseSpan parses interval and period strings such as "1m", "4h", "1d", "1w", "1mo" and "1y".
// "M" and "mo" are months of 30 days; "y" is 365 days.
func ParseSpan(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	unit := strings.TrimLeft(s, "0123456789")
	n, err := strconv.Atoi(strings.TrimSuffix(s, unit))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: invalid span %q", ports.ErrInvalidRequest, s)
	}

	const day = 24 * time.Hour
	var d time.Duration
	switch unit {
	case "s":
		d = time.Second
	case "m":
		d = time.Minute
	case "h":
		d = time.Hour
	case "d":
		d = day
	case "w", "wk":
		d = 7 * day
	case "M", "mo":
		d = 30 * day
	case "y":
		d = 365 * day
	default:
		return 0, fmt.Errorf("%w: invalid span unit in %q", ports.ErrInvalidRequest, s)
	}
	return time.Duration(n) * d, nil
}

// Limit returns how many interval bars cover period, capped at the endpoint maximum.
// A bare number is taken as a bar count.
func Limit(period, interval string) (int, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(period)); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("%w: invalid period %q", ports.ErrInvalidRequest, period)
		}
		return min(n, maxKlines), nil
	}

	p, err := ParseSpan(period)
	if err != nil {
		return 0, err
	}
	i, err := ParseSpan(interval)
	if err != nil {
		return 0, err
	}
	n := int(p / i)
	if n < 1 {
		return 0, fmt.Errorf("%w: period %q is shorter than interval %q", ports.ErrInvalidRequest, period, interval)
	}
	return min(n, maxKlines), nil
}
