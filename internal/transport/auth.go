package transport

import (
	"context"
	"net/http"
	"strings"

	"github.com/rpggio/deskview/internal/identity"
)

type sessionKey struct{}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess identity.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the authenticated session, if present.
func SessionFromContext(ctx context.Context) (identity.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(identity.Session)
	return sess, ok
}

// BearerToken extracts the token of an Authorization header value.
func BearerToken(header string) string {
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// AuthMiddleware enforces bearer token authentication and stores the
// resolved session in the request context.
func AuthMiddleware(resolver identity.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeError(w, &APIError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "missing bearer token"})
				return
			}

			sess, err := resolver.Resolve(r.Context(), token)
			if err == nil {
				err = sess.Validate()
			}
			if err != nil {
				writeError(w, &APIError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "invalid bearer token"})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}
