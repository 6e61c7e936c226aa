// Package middleware ships the stock request middlewares: request IDs,
// access logging, and Prometheus metrics. Each one is an ioc.Middleware and
// joins the chain through Bridge.Middlewares or by being autowired into a
// handler's dependency graph.
package middleware

import (
	"github.com/google/uuid"

	"github.com/weft-dev/weft/framework/ioc"
)

// HeaderRequestID carries the request correlation ID in both directions.
const HeaderRequestID = "X-Request-Id"

// RequestID assigns a fresh UUID to each request that arrives without one
// and echoes it on the response.
type RequestID struct {
	ioc.BaseService
}

func (m *RequestID) OnRequest(c *ioc.Ctx, next ioc.Next) (any, error) {
	id := c.Header(HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
		c.Request().Header.Set(HeaderRequestID, id)
	}
	return next()
}
