package utils

import (
	"errors"
	"fmt"
)

var ErrNotAllowed = errors.New("value not allowed")

func EnumValidator(allowed ...string) func(string) error {
	set := map[string]struct{}{}
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(s string) error {
		if _, ok := set[s]; ok {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrNotAllowed, s)
	}
}

// RangeValidator bounds an int column.
func RangeValidator(min, max int) func(int) error {
	return func(n int) error {
		if n < min || n > max {
			return fmt.Errorf("%w: %d outside [%d, %d]", ErrNotAllowed, n, min, max)
		}
		return nil
	}
}
