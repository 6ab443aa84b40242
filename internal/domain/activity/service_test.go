package activity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rpggio/deskview/internal/domain/activity"
	"github.com/rpggio/deskview/internal/identity"
	"github.com/rpggio/deskview/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var officer = identity.Session{ID: "s1", TenantID: "acme", UserID: "u1", Role: identity.RoleSecurityOfficer}

func TestRecord_FillsTenantUserAndTime(t *testing.T) {
	repo := &mocks.ActivityRepository{}
	repo.On("Log", mock.Anything, "acme", mock.MatchedBy(func(e *activity.Entry) bool {
		return e.TenantID == "acme" && e.UserID == "u1" && !e.At.IsZero() && e.Type == activity.TypeImportUploaded
	})).Return(nil)

	svc := activity.NewService(repo, nil)
	svc.Record(context.Background(), officer, activity.Entry{Type: activity.TypeImportUploaded, Screen: "visit_requests"})
	repo.AssertExpectations(t)
}

func TestRecord_IgnoresFailures(t *testing.T) {
	repo := &mocks.ActivityRepository{}
	repo.On("Log", mock.Anything, "acme", mock.Anything).Return(errors.New("disk full"))

	svc := activity.NewService(repo, nil)
	require.NotPanics(t, func() {
		svc.Record(context.Background(), officer, activity.Entry{Type: activity.TypeCaseLookup})
	})
}

func TestRecent(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ActivityRepository{}
	lookup := activity.TypeCaseLookup
	repo.On("List", ctx, "acme", activity.ListOptions{Type: &lookup, Limit: 50}).
		Return([]activity.Entry{{ID: 1, Type: lookup}}, nil)
	repo.On("List", ctx, "acme", activity.ListOptions{Limit: 500}).Return(nil, nil)

	svc := activity.NewService(repo, nil)
	entries, err := svc.Recent(ctx, officer, activity.ListOptions{Type: &lookup})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entries, err = svc.Recent(ctx, officer, activity.ListOptions{Limit: 10_000})
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func TestRecent_Validation(t *testing.T) {
	svc := activity.NewService(&mocks.ActivityRepository{}, nil)
	ctx := context.Background()

	host := identity.Session{ID: "s2", TenantID: "acme", Role: identity.RoleHost}
	_, err := svc.Recent(ctx, host, activity.ListOptions{})
	require.ErrorIs(t, err, activity.ErrForbidden)

	bogus := activity.Type("record_created")
	_, err = svc.Recent(ctx, officer, activity.ListOptions{Type: &bogus})
	require.ErrorIs(t, err, activity.ErrInvalidInput)

	_, err = svc.Recent(ctx, officer, activity.ListOptions{Limit: -1})
	require.ErrorIs(t, err, activity.ErrInvalidInput)
}
