package services

import (
	"context"
	"testing"

	"village-registry/internal/config"
	"village-registry/internal/core/domain"
	"village-registry/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserFixture(t *testing.T) (*fixture, *UserService) {
	t.Helper()
	f := newFixture(t)
	require.NoError(t, config.NewSeeder(f.db, config.BootstrapConfig{}, logger.Discard()).Run(context.Background()))

	svc := NewUserService(f.repos.Users, f.repos.Roles, NewSessionStore(0), logger.Discard())
	svc.hashCost = bcrypt.MinCost
	return f, svc
}

func TestAssignRole_Duplicate(t *testing.T) {
	ctx := context.Background()
	_, svc := newUserFixture(t)

	user, err := svc.CreateUser(ctx, &CreateUserInput{Username: "clerk", Password: "clerk-password", Roles: []string{"clerk"}})
	require.NoError(t, err)
	assert.Equal(t, []string{domain.RoleClerk}, user.Roles)

	err = svc.AssignRole(ctx, user.ID, domain.RoleClerk)
	assert.ErrorIs(t, err, domain.ErrDuplicateEntry)

	require.NoError(t, svc.AssignRole(ctx, user.ID, domain.RoleChief))
}

func TestRevokeRole(t *testing.T) {
	ctx := context.Background()
	_, svc := newUserFixture(t)

	user, err := svc.CreateUser(ctx, &CreateUserInput{Username: "clerk", Password: "clerk-password", Roles: []string{domain.RoleClerk}})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeRole(ctx, user.ID, domain.RoleClerk))
	assert.ErrorIs(t, svc.RevokeRole(ctx, user.ID, domain.RoleClerk), domain.ErrNotFound)
	assert.ErrorIs(t, svc.RevokeRole(ctx, user.ID, "NO_SUCH_ROLE"), domain.ErrNotFound)
}

func TestDeleteRole_SystemRolesRefused(t *testing.T) {
	ctx := context.Background()
	f, svc := newUserFixture(t)

	for _, name := range []string{domain.RoleAdmin, domain.RoleChief, domain.RoleResident} {
		role, err := f.repos.Roles.GetRoleByName(ctx, name)
		require.NoError(t, err)
		assert.ErrorIs(t, svc.DeleteRole(ctx, role.ID), domain.ErrSystemRole, name)
	}

	clerk, err := f.repos.Roles.GetRoleByName(ctx, domain.RoleClerk)
	require.NoError(t, err)
	user, err := svc.CreateUser(ctx, &CreateUserInput{Username: "clerk", Password: "clerk-password", Roles: []string{domain.RoleClerk}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRole(ctx, clerk.ID))

	roles, err := svc.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 3)

	held, err := f.repos.Roles.ListRolesByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestCreateUser_Validation(t *testing.T) {
	ctx := context.Background()
	_, svc := newUserFixture(t)

	_, err := svc.CreateUser(ctx, &CreateUserInput{Username: "ab", Password: "long-enough"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CreateUser(ctx, &CreateUserInput{Username: "someone", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CreateUser(ctx, &CreateUserInput{Username: "someone", Password: "long-enough", Roles: []string{"WIZARD"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.CreateUser(ctx, &CreateUserInput{Username: "someone", Password: "long-enough"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, &CreateUserInput{Username: "someone", Password: "long-enough"})
	assert.ErrorIs(t, err, domain.ErrDuplicateEntry)

	list, err := svc.ListUsers(ctx, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.Total)
}
