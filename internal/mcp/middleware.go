package mcp

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/deskview/internal/identity"
)

type contextKey int

const sessionKey contextKey = iota

// sessionFrom returns the caller's session.
func sessionFrom(ctx context.Context) (identity.Session, error) {
	sess, ok := ctx.Value(sessionKey).(identity.Session)
	if !ok {
		return identity.Session{}, fmt.Errorf("%w: no session", identity.ErrUnauthorized)
	}
	return sess, nil
}

func skipsAuth(method string) bool {
	return method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/")
}

// authMiddleware resolves the bearer token of every request through resolver.
func authMiddleware(resolver identity.Resolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if skipsAuth(method) {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("%w: missing headers", identity.ErrUnauthorized)
			}
			token := strings.TrimSpace(strings.TrimPrefix(extra.Header.Get("Authorization"), "Bearer "))
			if token == "" {
				return nil, fmt.Errorf("%w: missing bearer token", identity.ErrUnauthorized)
			}

			sess, err := resolver.Resolve(ctx, token)
			if err == nil {
				err = sess.Validate()
			}
			if err != nil {
				return nil, err
			}
			return next(context.WithValue(ctx, sessionKey, sess), method, req)
		}
	}
}

// staticMiddleware injects a fixed session, for stdio and unauthenticated
// HTTP.
func staticMiddleware(sess identity.Session) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			return next(context.WithValue(ctx, sessionKey, sess), method, req)
		}
	}
}

// scopeMiddleware gives every MCP connection its own screen instances by
// suffixing the session ID with the Mcp-Session-Id header (HTTP) or the
// connection's session ID (stdio).
func scopeMiddleware() sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			sess, ok := ctx.Value(sessionKey).(identity.Session)
			if !ok {
				return next(ctx, method, req)
			}

			var connID string
			if extra := req.GetExtra(); extra != nil && extra.Header != nil {
				connID = extra.Header.Get("Mcp-Session-Id")
			}
			if connID == "" {
				connID = connectionID(req)
			}
			if connID != "" {
				sess.ID = sess.ID + "/" + connID
				ctx = context.WithValue(ctx, sessionKey, sess)
			}
			return next(ctx, method, req)
		}
	}
}
