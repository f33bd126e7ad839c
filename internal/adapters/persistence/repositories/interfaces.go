package repositories

import (
	"context"

	"village-registry/internal/adapters/persistence/models"
)

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, offset, limit int) ([]*models.User, int64, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	UnlinkResident(ctx context.Context, residentID uint) error
}

// RoleRepository defines role and permission repository interface
type RoleRepository interface {
	CreateRole(ctx context.Context, role *models.Role) error
	GetRoleByID(ctx context.Context, id uint) (*models.Role, error)
	GetRoleByName(ctx context.Context, name string) (*models.Role, error)
	ListRoles(ctx context.Context) ([]*models.Role, error)
	DeleteRole(ctx context.Context, id uint) error

	CreatePermission(ctx context.Context, perm *models.Permission) error
	GetPermissionByName(ctx context.Context, name string) (*models.Permission, error)
	GrantPermission(ctx context.Context, roleID, permissionID uint) error
	HasPermission(ctx context.Context, roleID, permissionID uint) (bool, error)
	MapComponentPermission(ctx context.Context, componentID, action string, permissionID uint) error
	GetComponentPermission(ctx context.Context, componentID, action string) (*models.ComponentPermission, error)

	AssignRole(ctx context.Context, userID, roleID uint) error
	RevokeRole(ctx context.Context, userID, roleID uint) (int64, error)
	ListRolesByUser(ctx context.Context, userID uint) ([]*models.Role, error)
	CountUsersWithRole(ctx context.Context, roleID uint) (int64, error)

	RolesGrantComponentAction(ctx context.Context, roleNames []string, componentID, action string) (bool, error)
}
