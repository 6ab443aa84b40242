package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpggio/deskview/internal/repository"
)

// APIKey is a long-lived credential bound to one tenant, user, and role.
type APIKey struct {
	Hash        string
	TenantID    string
	UserID      string
	Role        Role
	Description string
	CreatedAt   time.Time
	LastUsed    *time.Time
}

// APIKeyStore persists hashed API keys.
type APIKeyStore interface {
	LookupAPIKey(ctx context.Context, hash string) (*APIKey, error)
	TouchAPIKey(ctx context.Context, hash string, at time.Time) error
}

// APIKeyResolver resolves opaque API keys through an APIKeyStore.
type APIKeyResolver struct {
	store  APIKeyStore
	logger *slog.Logger
	now    func() time.Time
}

// NewAPIKeyResolver creates an APIKeyResolver.
func NewAPIKeyResolver(store APIKeyStore, logger *slog.Logger) *APIKeyResolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &APIKeyResolver{store: store, logger: logger, now: time.Now}
}

// HashToken returns the stored form of an API key.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Resolve looks the key up by hash and records its use.
func (r *APIKeyResolver) Resolve(ctx context.Context, token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, fmt.Errorf("%w: missing token", ErrUnauthorized)
	}
	hash := HashToken(token)
	key, err := r.store.LookupAPIKey(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: unknown api key", ErrUnauthorized)
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup api key: %w", err)
	}

	if err := r.store.TouchAPIKey(ctx, hash, r.now().UTC()); err != nil {
		r.logger.Warn("failed to record api key use", "tenant_id", key.TenantID, "error", err)
	}

	sess := Session{
		ID:       "key-" + hash[:16],
		TenantID: key.TenantID,
		UserID:   key.UserID,
		Role:     key.Role,
	}
	if err := sess.Validate(); err != nil {
		return Session{}, err
	}
	return sess, nil
}
