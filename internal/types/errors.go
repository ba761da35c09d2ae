package types

import "fmt"

// MergeError reports a failed strategy execution on one element of a
// structured file. Location is the XPath-like path of the template element.
type MergeError struct {
	File     string
	Location string
	Strategy MergeStrategy
	Cause    error
}

func (e *MergeError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("merge strategy %s failed on %s: %v", e.Strategy, e.Location, e.Cause)
	}
	return fmt.Sprintf("merge strategy %s failed on %s in %s: %v", e.Strategy, e.Location, e.File, e.Cause)
}

func (e *MergeError) Unwrap() error {
	return e.Cause
}
