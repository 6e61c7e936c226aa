package ioc

import (
	"fmt"
	"reflect"
)

// CircularDependencyError reports a registry slot observed PENDING on
// re-entry within one resolution chain. It is a programming error, not a
// recoverable per-request condition.
type CircularDependencyError struct {
	Type reflect.Type
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("ioc: circular dependency detected: %s", e.Type)
}

// NotInjectableError reports a resolution request for a type that carries no
// capability marker.
type NotInjectableError struct {
	Type reflect.Type
}

func (e *NotInjectableError) Error() string {
	return fmt.Sprintf("ioc: cannot autowire %s: not injectable", e.Type)
}

// ConfigError reports a wiring mistake: a process-scope component depending
// on request-scope state, a malformed bean factory, and the like. Fatal,
// 5xx-class.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "ioc: " + e.Msg }

func configf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}
