package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures verification of identity provider tokens.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	Now      func() time.Time
}

// JWTResolver verifies HS256 tokens issued by the identity provider.
type JWTResolver struct {
	cfg JWTConfig
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Tenant    string `json:"tenant"`
	Role      string `json:"role"`
	SessionID string `json:"sid,omitempty"`
}

// NewJWTResolver validates cfg and returns a resolver.
func NewJWTResolver(cfg JWTConfig) (*JWTResolver, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &JWTResolver{cfg: cfg}, nil
}

// Resolve verifies token and maps its claims to a Session.
func (r *JWTResolver) Resolve(_ context.Context, token string) (Session, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.cfg.Now),
	}
	if r.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.cfg.Issuer))
	}
	if r.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(r.cfg.Audience))
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), &claims, func(*jwt.Token) (any, error) {
		return r.cfg.Secret, nil
	}, opts...)
	if err != nil {
		return Session{}, mapJWTError(err)
	}

	sess := Session{
		ID:       firstNonEmpty(claims.SessionID, claims.ID, subjectSessionID(claims.Tenant, claims.Subject)),
		TenantID: claims.Tenant,
		UserID:   claims.Subject,
		Role:     Role(claims.Role),
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	if err := sess.Validate(); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Issue signs a token for sess. It is used by local tooling and tests that
// stand in for the identity provider.
func (r *JWTResolver) Issue(sess Session, ttl time.Duration) (string, error) {
	now := r.cfg.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Tenant:    sess.TenantID,
		Role:      string(sess.Role),
		SessionID: sess.ID,
	}
	if r.cfg.Issuer != "" {
		claims.Issuer = r.cfg.Issuer
	}
	if r.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{r.cfg.Audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// subjectSessionID names the session of a token without sid or jti. Subjects
// are only unique within a tenant.
func subjectSessionID(tenant, subject string) string {
	if subject == "" {
		return ""
	}
	return tenant + "/" + subject
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: token expired", ErrUnauthorized)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: token signature invalid", ErrUnauthorized)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: token not issued for this service", ErrUnauthorized)
	default:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
