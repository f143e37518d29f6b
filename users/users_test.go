package users_test

import (
	"encoding/json"
	"testing"

	apperrors "github.com/jrsteele09/repairshop-client/internal/errors"
	"github.com/jrsteele09/repairshop-client/users"
	"github.com/stretchr/testify/require"
)

func TestProfile_IsAdmin(t *testing.T) {
	t.Run("admin", func(t *testing.T) {
		p := &users.Profile{ID: "u1", Role: users.RoleAdmin}
		require.True(t, p.IsAdmin())
		require.NoError(t, users.RequireAdmin(p))
	})

	t.Run("tech", func(t *testing.T) {
		p := &users.Profile{ID: "u2", Role: users.RoleTech}
		require.False(t, p.IsAdmin())
		require.ErrorIs(t, users.RequireAdmin(p), apperrors.ErrAdminOnly)
	})

	t.Run("nil profile", func(t *testing.T) {
		var p *users.Profile
		require.False(t, p.IsAdmin())
		require.False(t, p.Valid())
		require.Nil(t, p.Clone())
		require.ErrorIs(t, users.RequireAdmin(p), apperrors.ErrAdminOnly)
	})
}

func TestProfile_JSONFieldNames(t *testing.T) {
	raw := `{"id":"u1","shopId":"s1","email":"ana@shop.test","displayName":"Ana","role":"Admin"}`

	var p users.Profile
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	require.Equal(t, "s1", p.ShopID)
	require.Equal(t, "Ana", p.DisplayName)
	require.True(t, p.IsAdmin())
}

func TestProfile_CloneIsIndependent(t *testing.T) {
	p := &users.Profile{ID: "u1", DisplayName: "Ana"}
	c := p.Clone()
	c.DisplayName = "Other"
	require.Equal(t, "Ana", p.DisplayName)
}
