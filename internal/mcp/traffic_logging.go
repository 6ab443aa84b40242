package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/deskview/internal/identity"
)

// maxLoggedPayload caps each logged params or result payload. View results
// can carry thousands of rows.
const maxLoggedPayload = 4 << 10

// trafficLogger logs every message passing in direction at debug level.
// It is a no-op unless debug logging is enabled.
func trafficLogger(logger *slog.Logger, direction string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if !logger.Enabled(ctx, slog.LevelDebug) {
				return next(ctx, method, req)
			}

			attrs := []slog.Attr{
				slog.String("direction", direction),
				slog.String("method", method),
				slog.String("connection", connectionID(req)),
			}
			if sess, ok := ctx.Value(sessionKey).(identity.Session); ok {
				attrs = append(attrs,
					slog.String("tenant_id", sess.TenantID),
					slog.String("role", string(sess.Role)),
				)
			}
			params := requestParams(req)
			if call, ok := params.(*sdkmcp.CallToolParamsRaw); ok {
				attrs = append(attrs, slog.String("tool", call.Name))
			}
			logger.LogAttrs(ctx, slog.LevelDebug, "mcp request", append(attrs, slog.String("params", truncatePayload(params)))...)

			start := time.Now()
			result, err := next(ctx, method, req)
			if strings.HasPrefix(method, "notifications/") {
				return result, err
			}

			attrs = append(attrs, slog.Duration("elapsed", time.Since(start)))
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			} else {
				attrs = append(attrs, slog.String("result", truncatePayload(result)))
			}
			logger.LogAttrs(ctx, slog.LevelDebug, "mcp response", attrs...)
			return result, err
		}
	}
}

// connectionID returns the SDK session ID of req, or "" when req carries no
// session. Some request types panic on access before the session exists.
func connectionID(req sdkmcp.Request) (id string) {
	if req == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	if session := req.GetSession(); session != nil {
		return session.ID()
	}
	return ""
}

func requestParams(req sdkmcp.Request) (params any) {
	if req == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			params = nil
		}
	}()
	return req.GetParams()
}

func truncatePayload(payload any) string {
	if payload == nil {
		return "<nil>"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%T", payload)
	}
	if len(data) > maxLoggedPayload {
		return fmt.Sprintf("%s... (%d bytes)", data[:maxLoggedPayload], len(data))
	}
	return string(data)
}
