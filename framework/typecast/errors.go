package typecast

import (
	"fmt"
	"reflect"
)

// ── Error taxonomy ───────────────────────────────────────────────────────────
//
// The engine distinguishes two failure classes, and the distinction is
// load-bearing for the HTTP layer:
//
//   - *ValidationError: the input was wrong (client-caused, 4xx)
//   - *UnsupportedTypeError: the declared type cannot be handled at all
//     (configuration bug, 5xx)

// ValidationError reports input that failed coercion against a valid schema.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Invalidf builds a ValidationError.
func Invalidf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedTypeError reports a declared type the engine does not support.
type UnsupportedTypeError struct {
	Type reflect.Type
	Msg  string
}

func (e *UnsupportedTypeError) Error() string {
	name := "<nil>"
	if e.Type != nil {
		name = e.Type.String()
	}
	if e.Msg == "" {
		return fmt.Sprintf("typecast: type %s is not supported", name)
	}
	return fmt.Sprintf("typecast: type %s is not supported: %s", name, e.Msg)
}

func unsupported(t reflect.Type, msg string) *UnsupportedTypeError {
	return &UnsupportedTypeError{Type: t, Msg: msg}
}
