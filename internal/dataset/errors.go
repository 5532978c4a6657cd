package dataset

import "fmt"

// LoadError indicates the observation source could not be loaded at all:
// file missing, unreadable, or a required column absent. Fatal to startup,
// never retried.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load dataset from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// TimestampError reports an unparseable created_at value. Only returned when
// strict timestamp checking is enabled; otherwise the row is kept with
// TimeValid=false and simply drops out of time-bucketed views.
type TimestampError struct {
	Row   int
	Value string
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("row %d: cannot parse created_at %q", e.Row, e.Value)
}
