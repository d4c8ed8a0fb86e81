package helpers

import "time"

// TimePtr returns a pointer to a copy of t in UTC.
func TimePtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
