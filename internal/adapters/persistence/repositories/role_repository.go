package repositories

import (
	"context"

	"village-registry/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// roleRepository implements RoleRepository interface
type roleRepository struct {
	db *gorm.DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

// CreateRole creates a new role
func (r *roleRepository) CreateRole(ctx context.Context, role *models.Role) error {
	return r.db.WithContext(ctx).Create(role).Error
}

// GetRoleByID gets a role by ID
func (r *roleRepository) GetRoleByID(ctx context.Context, id uint) (*models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).First(&role, id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// GetRoleByName gets a role by name
func (r *roleRepository) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// ListRoles lists all roles
func (r *roleRepository) ListRoles(ctx context.Context) ([]*models.Role, error) {
	var roles []*models.Role
	err := r.db.WithContext(ctx).Order("name ASC").Find(&roles).Error
	return roles, err
}

// DeleteRole deletes a role together with its grants and assignments
func (r *roleRepository) DeleteRole(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&models.RolePermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&models.UserRole{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Role{}, id).Error
	})
}

// CreatePermission creates a new permission
func (r *roleRepository) CreatePermission(ctx context.Context, perm *models.Permission) error {
	return r.db.WithContext(ctx).Create(perm).Error
}

// GetPermissionByName gets a permission by name
func (r *roleRepository) GetPermissionByName(ctx context.Context, name string) (*models.Permission, error) {
	var perm models.Permission
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&perm).Error; err != nil {
		return nil, err
	}
	return &perm, nil
}

// GrantPermission links a permission to a role
func (r *roleRepository) GrantPermission(ctx context.Context, roleID, permissionID uint) error {
	return r.db.WithContext(ctx).Create(&models.RolePermission{
		RoleID:       roleID,
		PermissionID: permissionID,
	}).Error
}

// HasPermission checks if a role already holds a permission
func (r *roleRepository) HasPermission(ctx context.Context, roleID, permissionID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RolePermission{}).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Count(&count).Error
	return count > 0, err
}

// MapComponentPermission maps (component, action) to a permission
func (r *roleRepository) MapComponentPermission(ctx context.Context, componentID, action string, permissionID uint) error {
	return r.db.WithContext(ctx).Create(&models.ComponentPermission{
		ComponentID:  componentID,
		Action:       action,
		PermissionID: permissionID,
	}).Error
}

// GetComponentPermission gets the mapping for (component, action)
func (r *roleRepository) GetComponentPermission(ctx context.Context, componentID, action string) (*models.ComponentPermission, error) {
	var cp models.ComponentPermission
	err := r.db.WithContext(ctx).
		Where("component_id = ? AND action = ?", componentID, action).
		First(&cp).Error
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// AssignRole gives a role to a user
func (r *roleRepository) AssignRole(ctx context.Context, userID, roleID uint) error {
	return r.db.WithContext(ctx).Create(&models.UserRole{
		UserID: userID,
		RoleID: roleID,
	}).Error
}

// RevokeRole removes a role from a user
func (r *roleRepository) RevokeRole(ctx context.Context, userID, roleID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&models.UserRole{})
	return res.RowsAffected, res.Error
}

// ListRolesByUser lists the roles held by a user
func (r *roleRepository) ListRolesByUser(ctx context.Context, userID uint) ([]*models.Role, error) {
	var roles []*models.Role
	err := r.db.WithContext(ctx).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name ASC").
		Find(&roles).Error
	return roles, err
}

// CountUsersWithRole counts users holding a role
func (r *roleRepository) CountUsersWithRole(ctx context.Context, roleID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.UserRole{}).Where("role_id = ?", roleID).Count(&count).Error
	return count, err
}

// RolesGrantComponentAction checks whether any of the named roles holds the
// permission mapped to (component, action)
func (r *roleRepository) RolesGrantComponentAction(ctx context.Context, roleNames []string, componentID, action string) (bool, error) {
	if len(roleNames) == 0 {
		return false, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ComponentPermission{}).
		Joins("JOIN role_permissions ON role_permissions.permission_id = component_permissions.permission_id").
		Joins("JOIN roles ON roles.id = role_permissions.role_id").
		Where("component_permissions.component_id = ? AND component_permissions.action = ?", componentID, action).
		Where("roles.name IN ?", roleNames).
		Count(&count).Error
	return count > 0, err
}
