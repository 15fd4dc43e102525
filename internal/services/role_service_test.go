package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"guild-chat-service/internal/apperr"
	"guild-chat-service/internal/models"
	"guild-chat-service/internal/repositories"
)

var ownerRole = models.Role{
	ID:          10,
	CommunityID: 1,
	Name:        models.OwnerRoleName,
	Permissions: models.CapabilityList([]models.Capability{models.CapAdministrator}),
	IsOwner:     true,
}

func roleFixture() (*fixture, *RoleService) {
	f := newFixture()
	f.communities.On("Get", mock.Anything, 1).Return(models.Community{ID: 1}, nil)
	return f, NewRoleService(f.store(), f.perms())
}

func TestDeleteLastAdministratorRole(t *testing.T) {
	f, svc := roleFixture()
	admins := capRole(11, models.CapAdministrator)
	f.roles.On("Get", mock.Anything, 1, 11).Return(admins, nil)
	f.withRoles(1, 2, admins)
	f.roles.On("CountAdminRoles", mock.Anything, 1).Return(1, nil)

	err := svc.Delete(context.Background(), 1, 11, 2)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	f.roles.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteAdministratorRoleWhenAnotherRemains(t *testing.T) {
	f, svc := roleFixture()
	admins := capRole(11, models.CapAdministrator)
	f.roles.On("Get", mock.Anything, 1, 11).Return(admins, nil)
	f.withRoles(1, 2, ownerRole)
	f.roles.On("CountAdminRoles", mock.Anything, 1).Return(2, nil)
	f.roles.On("Delete", mock.Anything, 11).Return(nil).Once()

	require.NoError(t, svc.Delete(context.Background(), 1, 11, 2))
	f.roles.AssertExpectations(t)
}

func TestOwnerRoleCannotBeDeletedOrRenamed(t *testing.T) {
	f, svc := roleFixture()
	f.roles.On("Get", mock.Anything, 1, 10).Return(ownerRole, nil)
	f.withRoles(1, 2, ownerRole)

	err := svc.Delete(context.Background(), 1, 10, 2)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	name := "Boss"
	_, err = svc.Update(context.Background(), 1, 10, 2, models.RoleUpdate{Name: &name})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	perms := []models.Capability{models.CapKickMembers}
	_, err = svc.Update(context.Background(), 1, 10, 2, models.RoleUpdate{Permissions: &perms})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestNonAdminCannotGrantAdministrator(t *testing.T) {
	f, svc := roleFixture()
	f.withRoles(1, 5, capRole(3, models.CapManageRoles))

	_, err := svc.Create(context.Background(), 1, 5, models.RoleInput{Name: "Admins", Permissions: []models.Capability{models.CapAdministrator}})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	f.roles.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestNonAdminCannotEditAdministratorRole(t *testing.T) {
	f, svc := roleFixture()
	f.roles.On("Get", mock.Anything, 1, 11).Return(capRole(11, models.CapAdministrator), nil)
	f.withRoles(1, 5, capRole(3, models.CapManageRoles))

	color := "#000000"
	_, err := svc.Update(context.Background(), 1, 11, 5, models.RoleUpdate{ColorHex: &color})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestCreateRoleValidation(t *testing.T) {
	f, svc := roleFixture()
	f.withRoles(1, 2, ownerRole)
	f.roles.On("Create", mock.Anything, mock.MatchedBy(func(r models.Role) bool { return r.Name == "Mods" })).Return(nil, repositories.ErrDuplicate)

	_, err := svc.Create(context.Background(), 1, 2, models.RoleInput{Name: "Mods", Permissions: []models.Capability{"FLY"}})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

	_, err = svc.Create(context.Background(), 1, 2, models.RoleInput{Name: "owner"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.Create(context.Background(), 1, 2, models.RoleInput{Name: "Mods"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestCreateRoleDefaultsColor(t *testing.T) {
	f, svc := roleFixture()
	f.withRoles(1, 5, capRole(3, models.CapManageRoles))
	f.roles.On("Create", mock.Anything, mock.MatchedBy(func(r models.Role) bool {
		return r.ColorHex == defaultRoleColor && r.Has(models.CapManageChannels)
	})).Return(models.Role{ID: 12, Name: "Mods"}, nil)

	r, err := svc.Create(context.Background(), 1, 5, models.RoleInput{Name: "Mods", Permissions: []models.Capability{models.CapManageChannels}})
	require.NoError(t, err)
	assert.Equal(t, 12, r.ID)
}

func TestListRolesHidesPermissionsFromNonAdmins(t *testing.T) {
	f, svc := roleFixture()
	f.communities.On("IsMember", mock.Anything, 1, 5).Return(true, nil)
	f.communities.On("IsMember", mock.Anything, 1, 2).Return(true, nil)
	f.withRoles(1, 5)
	f.withRoles(1, 2, ownerRole)
	f.roles.On("ListByCommunity", mock.Anything, 1).Return([]models.Role{ownerRole, capRole(3, models.CapKickMembers)}, nil).Once()
	f.roles.On("ListByCommunity", mock.Anything, 1).Return([]models.Role{ownerRole, capRole(3, models.CapKickMembers)}, nil).Once()

	roles, err := svc.List(context.Background(), 1, 5)
	require.NoError(t, err)
	for _, r := range roles {
		assert.Empty(t, r.Permissions)
	}

	roles, err = svc.List(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, roles[1].Permissions)
}

func TestAssignRequiresMembership(t *testing.T) {
	f, svc := roleFixture()
	f.roles.On("Get", mock.Anything, 1, 3).Return(capRole(3, models.CapKickMembers), nil)
	f.withRoles(1, 2, ownerRole)
	f.communities.On("IsMember", mock.Anything, 1, 8).Return(false, nil)

	err := svc.Assign(context.Background(), 1, 3, 8, 2)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRemoveOwnerFromLastHolder(t *testing.T) {
	f, svc := roleFixture()
	f.roles.On("Get", mock.Anything, 1, 10).Return(ownerRole, nil)
	f.withRoles(1, 2, ownerRole)
	f.roles.On("CountHolders", mock.Anything, 10).Return(1, nil)

	err := svc.Remove(context.Background(), 1, 10, 2, 2)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	f.roles.AssertNotCalled(t, "Unassign", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveUnheldRole(t *testing.T) {
	f, svc := roleFixture()
	f.roles.On("Get", mock.Anything, 1, 3).Return(capRole(3, models.CapKickMembers), nil)
	f.withRoles(1, 2, ownerRole)
	f.roles.On("Unassign", mock.Anything, 3, 8).Return(false, nil)

	err := svc.Remove(context.Background(), 1, 3, 8, 2)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
