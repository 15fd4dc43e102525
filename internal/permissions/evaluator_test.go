package permissions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/mocks"
	"guild-chat-service/internal/models"
)

func role(perms ...models.Capability) models.Role {
	return models.Role{Name: "r", Permissions: models.CapabilityList(perms)}
}

func TestGrantsTruthTable(t *testing.T) {
	cases := []struct {
		name  string
		roles []models.Role
		cap   models.Capability
		want  bool
	}{
		{"no roles", nil, models.CapManageChannels, false},
		{"literal capability", []models.Role{role(models.CapManageChannels)}, models.CapManageChannels, true},
		{"other capability", []models.Role{role(models.CapKickMembers)}, models.CapManageChannels, false},
		{"administrator implies all", []models.Role{role(models.CapAdministrator)}, models.CapManageRoles, true},
		{"owner flag implies all", []models.Role{{Name: models.OwnerRoleName, IsOwner: true}}, models.CapKickMembers, true},
		{"any of several", []models.Role{role(models.CapKickMembers), role(models.CapCreateInvite)}, models.CapCreateInvite, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Grants(tc.roles, tc.cap))
		})
	}
}

func TestHasCapabilityStoreError(t *testing.T) {
	roles := new(mocks.RoleRepositoryMock)
	roles.On("ListUserRoles", mock.Anything, 1, 2).Return(nil, errors.New("db down"))

	ok, err := NewEvaluator(roles).HasCapability(context.Background(), 1, 2, models.CapManageServer)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestGuardShortCircuits(t *testing.T) {
	roles := new(mocks.RoleRepositoryMock)
	roles.On("ListUserRoles", mock.Anything, 1, 2).Return([]models.Role{role(models.CapKickMembers)}, nil)

	called := false
	err := NewEvaluator(roles).Guard(context.Background(), 1, 2, models.CapManageChannels, func(ctx context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Contains(t, err.Error(), "MANAGE_CHANNELS")
	assert.False(t, called)
}

func TestGuardRunsWhenGranted(t *testing.T) {
	roles := new(mocks.RoleRepositoryMock)
	roles.On("ListUserRoles", mock.Anything, 1, 2).Return([]models.Role{role(models.CapManageChannels)}, nil)

	called := false
	err := NewEvaluator(roles).Guard(context.Background(), 1, 2, models.CapManageChannels, func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	roles.AssertExpectations(t)
}
