package bridge

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/weft-dev/weft/framework/inspect"
	"github.com/weft-dev/weft/framework/ioc"
	"github.com/weft-dev/weft/framework/typecast"
)

// MissingParamError reports a required path/query parameter that was absent
// and had no default. Client-caused.
type MissingParamError struct {
	Param string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("missing required parameter: %s", e.Param)
}

// StackExhaustedError reports a body parameter with no payload left on the
// request data stack. The mismatch between pushed payloads and declared body
// parameters is a programming defect, not a client one, so it maps to a
// 5xx-class outcome.
type StackExhaustedError struct {
	Param string
}

func (e *StackExhaustedError) Error() string {
	return fmt.Sprintf("request stack is empty for param: %s", e.Param)
}

// StatusError lets an application error choose its own response status.
type StatusError interface {
	error
	HTTPStatus() int
}

// statusOf selects the HTTP status class for a binding/resolution failure.
// The 4xx/5xx split follows the error taxonomy: validation and missing
// parameters are the client's fault, everything else is configuration.
func statusOf(err error) int {
	var se StatusError
	if errors.As(err, &se) {
		return se.HTTPStatus()
	}
	// A server-marked wrapper wins over whatever it wraps: an outbound
	// schema violation is never the client's fault, even though the
	// underlying error is a validation one.
	var srv *serverError
	if errors.As(err, &srv) {
		return http.StatusInternalServerError
	}
	var (
		validation  *typecast.ValidationError
		missing     *MissingParamError
		exhausted   *StackExhaustedError
		unsupported *typecast.UnsupportedTypeError
		circular    *ioc.CircularDependencyError
		injectable  *ioc.NotInjectableError
		configErr   *ioc.ConfigError
		inspectErr  *inspect.Error
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &missing):
		return http.StatusBadRequest
	case errors.As(err, &exhausted), errors.As(err, &unsupported),
		errors.As(err, &circular), errors.As(err, &injectable),
		errors.As(err, &configErr), errors.As(err, &inspectErr):
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
