package timeutil

import "time"

// RealClock is the production clock. It reports wall time in UTC.
type RealClock struct{}

// Now returns the current UTC time
func (RealClock) Now() time.Time {
	return Now()
}
