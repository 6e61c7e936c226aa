package middleware

import (
	"time"

	"go.uber.org/zap"

	"github.com/weft-dev/weft/framework/ioc"
)

// AccessLog writes one structured line per request with its outcome and
// latency. Failures still log; the error itself is rendered downstream.
type AccessLog struct {
	ioc.BaseService
	Log *zap.Logger
}

func (m *AccessLog) OnRequest(c *ioc.Ctx, next ioc.Next) (any, error) {
	start := time.Now()
	result, err := next()
	fields := []zap.Field{
		zap.String("method", c.Request().Method),
		zap.String("path", c.Request().URL.Path),
		zap.String("request_id", c.Header(HeaderRequestID)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		m.Log.Warn("request", append(fields, zap.Error(err))...)
	} else {
		m.Log.Info("request", fields...)
	}
	return result, err
}
