package app

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/weft-dev/weft/framework/ioc"
)

// NormalizeNames rewrites inbound pet payloads before the handler binds
// them: names are trimmed and lowercased, and the untouched original is kept
// underneath on the request data stack, so a handler declaring two body
// parameters receives the normalized copy first and the raw one second.
type NormalizeNames struct {
	ioc.BaseService

	Log *zap.Logger
}

func (m *NormalizeNames) OnRequest(c *ioc.Ctx, next ioc.Next) (any, error) {
	if c.Request().Method == "POST" && strings.HasPrefix(c.Request().URL.Path, "/pets") {
		raw, err := c.ReadBody()
		if err != nil {
			return nil, err
		}
		var tree map[string]any
		if err := json.Unmarshal(raw, &tree); err == nil {
			if name, ok := tree["name"].(string); ok {
				tree["name"] = strings.ToLower(strings.TrimSpace(name))
			}
			normalized, _ := json.Marshal(tree)
			m.Log.Debug("payload normalized", zap.ByteString("body", normalized))
			c.PushPayload(raw)
			c.PushPayload(normalized)
		}
	}
	return next()
}
