package screen_test

import (
	"testing"

	"github.com/rpggio/deskview/internal/domain/screen"
	"github.com/rpggio/deskview/internal/identity"
	"github.com/stretchr/testify/require"
)

func newDispatch(t *testing.T) *screen.Dispatch {
	t.Helper()
	cat, err := screen.LoadCatalog("")
	require.NoError(t, err)
	return screen.NewDispatch(cat, newFakeBackend(), nil)
}

func TestDispatch_Home(t *testing.T) {
	d := newDispatch(t)
	tests := []struct {
		role    identity.Role
		home    string
		screens []string
	}{
		{identity.RoleHost, "host_visits", []string{"host_visits"}},
		{identity.RoleExportAnalyst, "cases", []string{"cases", "reports"}},
		{identity.RolePortfolioManager, "projects", []string{"projects", "reports"}},
		{identity.RoleSecurityOfficer, "visit_requests", []string{"visit_requests", "cases"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			home, err := d.Home(tt.role)
			require.NoError(t, err)
			require.Equal(t, tt.home, home.Home)
			var ids []string
			for _, s := range home.Screens {
				ids = append(ids, s.ID)
			}
			require.Equal(t, tt.screens, ids)
		})
	}
}

func TestDispatch_UnknownRole(t *testing.T) {
	d := newDispatch(t)
	_, err := d.Home("janitor")
	require.ErrorIs(t, err, screen.ErrUnknownRole)

	_, err = d.Factory("janitor")
	require.ErrorIs(t, err, screen.ErrUnknownRole)

	_, err = d.Screen("janitor", "reports")
	require.ErrorIs(t, err, screen.ErrUnknownRole)
}

func TestDispatch_FactoryGatesScreens(t *testing.T) {
	d := newDispatch(t)
	factory, err := d.Factory(identity.RoleReportViewer)
	require.NoError(t, err)

	sess := session("s1", identity.RoleReportViewer)
	inst, err := factory(sess, "reports")
	require.NoError(t, err)
	require.NotEmpty(t, inst.ID)
	require.Equal(t, "reports", inst.Screen.ID)
	require.Equal(t, sess, inst.Session)
	t.Cleanup(inst.Controller.Close)

	_, err = factory(sess, "cases")
	require.ErrorIs(t, err, screen.ErrForbidden)
}

func TestDispatch_Screen(t *testing.T) {
	d := newDispatch(t)

	s, err := d.Screen(identity.RoleAdmin, "cases")
	require.NoError(t, err)
	require.Equal(t, "/cases", s.Path)

	_, err = d.Screen(identity.RoleHost, "cases")
	require.ErrorIs(t, err, screen.ErrForbidden)

	_, err = d.Screen(identity.RoleHost, "missing")
	require.ErrorIs(t, err, screen.ErrUnknownScreen)
}
