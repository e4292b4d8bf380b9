package indicators

import "fmt"

// InsufficientDataError is returned when the latest bar has no defined value.
type InsufficientDataError struct {
	Indicator string
	Have      int
	Period    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("not enough valid data (%d) to calculate %s for period %d", e.Have, e.Indicator, e.Period)
}
