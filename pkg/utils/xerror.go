package utils

import "fmt"

// XError pairs a short reason with whatever caused it.
type XError struct {
	Reason string
	Meta   any
}

func (xe XError) Error() string {
	return fmt.Sprintf("xerror: %v; meta: %v", xe.Reason, xe.Meta)
}

// Unwrap exposes Meta when it is itself an error.
func (xe XError) Unwrap() error {
	if err, ok := xe.Meta.(error); ok {
		return err
	}
	return nil
}

func (xe XError) ToError() error {
	return xe
}
