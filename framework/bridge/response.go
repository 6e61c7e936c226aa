package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"

	"go.uber.org/zap"

	"github.com/weft-dev/weft/framework/typecast"
)

// Responder lets a handler take over response rendering entirely. A returned
// Responder bypasses the adapter below.
type Responder interface {
	Respond(w http.ResponseWriter, r *http.Request) error
}

// writeResult renders a handler's return value. Structured values go out as
// JSON, scalars as text, nil as 204. A route-level response schema, explicit
// or derived from the handler's result type, re-validates the outbound value
// first; a schema violation there is a server defect and renders as 500.
func (rt *Route) writeResult(w http.ResponseWriter, r *http.Request, result any) {
	if rsp, ok := result.(Responder); ok && !isNil(rsp) {
		if err := rsp.Respond(w, r); err != nil {
			rt.bridge.Log.Error("responder failed",
				zap.String("path", r.URL.Path), zap.Error(err))
		}
		return
	}
	if isNil(result) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch v := result.(type) {
	case []byte:
		w.Header().Set("Content-Type", rt.rawContentType("application/octet-stream"))
		w.WriteHeader(http.StatusOK)
		w.Write(v)
		return
	case string:
		w.Header().Set("Content-Type", rt.rawContentType("text/plain; charset=utf-8"))
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, v)
		return
	}

	rv := reflect.ValueOf(result)
	switch rv.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
	case reflect.Pointer:
		if k := rv.Elem().Kind(); k != reflect.Struct && k != reflect.Map && k != reflect.Slice {
			rt.writeScalar(w, result)
			return
		}
	default:
		rt.writeScalar(w, result)
		return
	}

	if rt.response != nil {
		if err := rt.checkResponse(result); err != nil {
			rt.bridge.writeError(w, r, &serverError{err: err})
			return
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		rt.bridge.Log.Error("encoding response",
			zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func (rt *Route) rawContentType(def string) string {
	if rt.contentType != "" {
		return rt.contentType
	}
	return def
}

func (rt *Route) writeScalar(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", rt.rawContentType("text/plain; charset=utf-8"))
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, result)
}

// checkResponse round-trips the outbound value through its declared schema.
func (rt *Route) checkResponse(result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if _, err := typecast.ValidateJSON(raw, rt.response); err != nil {
		return fmt.Errorf("response violates its schema: %w", err)
	}
	return nil
}

// writeError renders any binding or handler failure as a JSON error body.
// Server-class failures are logged with their cause; client-class ones are
// the caller's problem and stay out of the log.
func (b *Bridge) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		b.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": err.Error()})
}

// serverError wraps an outbound-schema violation so statusOf maps it to 500
// even though the wrapped error is validation-shaped.
type serverError struct{ err error }

func (e *serverError) Error() string { return e.err.Error() }
func (e *serverError) Unwrap() error { return e.err }

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
