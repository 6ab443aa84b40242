package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/deskview/internal/identity"
	"github.com/rpggio/deskview/internal/repository"
	"github.com/rpggio/deskview/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newJWT(t *testing.T, now time.Time) *identity.JWTResolver {
	t.Helper()
	r, err := identity.NewJWTResolver(identity.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "idp.test",
		Audience: "deskview",
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)
	return r
}

func TestJWTResolver_RoundTrip(t *testing.T) {
	r := newJWT(t, fixedNow)
	token, err := r.Issue(identity.Session{
		ID:       "s1",
		TenantID: "acme",
		UserID:   "u1",
		Role:     identity.RoleHost,
	}, time.Hour)
	require.NoError(t, err)

	sess, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "s1", sess.ID)
	require.Equal(t, "acme", sess.TenantID)
	require.Equal(t, "u1", sess.UserID)
	require.Equal(t, identity.RoleHost, sess.Role)
	require.Equal(t, fixedNow.Add(time.Hour), sess.ExpiresAt)
}

func TestJWTResolver_SubjectSessionIsTenantScoped(t *testing.T) {
	r := newJWT(t, fixedNow)
	ctx := context.Background()

	var ids []string
	for _, tenant := range []string{"tenant-a", "tenant-b"} {
		token, err := r.Issue(identity.Session{TenantID: tenant, UserID: "alice", Role: identity.RoleHost}, time.Hour)
		require.NoError(t, err)
		sess, err := r.Resolve(ctx, token)
		require.NoError(t, err)
		require.Equal(t, "alice", sess.UserID)
		ids = append(ids, sess.ID)
	}
	require.Equal(t, []string{"tenant-a/alice", "tenant-b/alice"}, ids)
}

func TestJWTResolver_Expired(t *testing.T) {
	token, err := newJWT(t, fixedNow).Issue(identity.Session{
		ID: "s1", TenantID: "acme", UserID: "u1", Role: identity.RoleHost,
	}, time.Minute)
	require.NoError(t, err)

	_, err = newJWT(t, fixedNow.Add(time.Hour)).Resolve(context.Background(), token)
	require.ErrorIs(t, err, identity.ErrUnauthorized)
	require.Contains(t, err.Error(), "expired")
}

func TestJWTResolver_WrongSecret(t *testing.T) {
	other, err := identity.NewJWTResolver(identity.JWTConfig{
		Secret:   []byte("other-secret"),
		Issuer:   "idp.test",
		Audience: "deskview",
		Now:      func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	token, err := other.Issue(identity.Session{
		ID: "s1", TenantID: "acme", UserID: "u1", Role: identity.RoleHost,
	}, time.Hour)
	require.NoError(t, err)

	_, err = newJWT(t, fixedNow).Resolve(context.Background(), token)
	require.ErrorIs(t, err, identity.ErrUnauthorized)
}

func TestJWTResolver_UnknownRole(t *testing.T) {
	r := newJWT(t, fixedNow)
	token, err := r.Issue(identity.Session{
		ID: "s1", TenantID: "acme", UserID: "u1", Role: "janitor",
	}, time.Hour)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), token)
	require.ErrorIs(t, err, identity.ErrUnauthorized)
}

func TestNewJWTResolver_RequiresSecret(t *testing.T) {
	_, err := identity.NewJWTResolver(identity.JWTConfig{})
	require.Error(t, err)
}

func TestAPIKeyResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	hash := identity.HashToken("k-123")

	store := &mocks.APIKeyStore{}
	store.On("LookupAPIKey", ctx, hash).Return(&identity.APIKey{
		Hash:     hash,
		TenantID: "acme",
		UserID:   "svc",
		Role:     identity.RoleReportViewer,
	}, nil)
	store.On("TouchAPIKey", ctx, hash, mock.Anything).Return(nil)

	sess, err := identity.NewAPIKeyResolver(store, nil).Resolve(ctx, "k-123")
	require.NoError(t, err)
	require.Equal(t, "acme", sess.TenantID)
	require.Equal(t, identity.RoleReportViewer, sess.Role)
	require.NotEmpty(t, sess.ID)
	store.AssertExpectations(t)
}

func TestAPIKeyResolver_Unknown(t *testing.T) {
	ctx := context.Background()
	store := &mocks.APIKeyStore{}
	store.On("LookupAPIKey", ctx, mock.Anything).Return((*identity.APIKey)(nil), repository.ErrNotFound)

	_, err := identity.NewAPIKeyResolver(store, nil).Resolve(ctx, "nope")
	require.ErrorIs(t, err, identity.ErrUnauthorized)
	store.AssertNotCalled(t, "TouchAPIKey", mock.Anything, mock.Anything, mock.Anything)
}

func TestAPIKeyResolver_TouchFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	store := &mocks.APIKeyStore{}
	store.On("LookupAPIKey", ctx, mock.Anything).Return(&identity.APIKey{
		TenantID: "acme", UserID: "svc", Role: identity.RoleAdmin,
	}, nil)
	store.On("TouchAPIKey", ctx, mock.Anything, mock.Anything).Return(errors.New("database is locked"))

	_, err := identity.NewAPIKeyResolver(store, nil).Resolve(ctx, "k")
	require.NoError(t, err)
}

type resolverFunc func(ctx context.Context, token string) (identity.Session, error)

func (f resolverFunc) Resolve(ctx context.Context, token string) (identity.Session, error) {
	return f(ctx, token)
}

func TestChainResolver(t *testing.T) {
	jwtSess := identity.Session{ID: "jwt", TenantID: "acme", Role: identity.RoleHost}
	keySess := identity.Session{ID: "key", TenantID: "acme", Role: identity.RoleAdmin}
	chain := identity.ChainResolver{
		JWT: resolverFunc(func(context.Context, string) (identity.Session, error) { return jwtSess, nil }),
		APIKeys: resolverFunc(func(context.Context, string) (identity.Session, error) {
			return keySess, nil
		}),
	}
	ctx := context.Background()

	sess, err := chain.Resolve(ctx, "aaa.bbb.ccc")
	require.NoError(t, err)
	require.Equal(t, "jwt", sess.ID)

	sess, err = chain.Resolve(ctx, "plain-key")
	require.NoError(t, err)
	require.Equal(t, "key", sess.ID)

	_, err = chain.Resolve(ctx, "  ")
	require.ErrorIs(t, err, identity.ErrUnauthorized)

	_, err = identity.ChainResolver{}.Resolve(ctx, "plain-key")
	require.ErrorIs(t, err, identity.ErrUnauthorized)
}

func TestStaticResolver(t *testing.T) {
	r := identity.StaticResolver{Session: identity.Session{ID: "local", TenantID: "acme", Role: identity.RoleAdmin}}
	sess, err := r.Resolve(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "local", sess.ID)

	_, err = identity.StaticResolver{}.Resolve(context.Background(), "")
	require.ErrorIs(t, err, identity.ErrUnauthorized)
}
