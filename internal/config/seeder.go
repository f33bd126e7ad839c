package config

import (
	"context"

	"village-registry/internal/adapters/persistence/models"
	"village-registry/internal/adapters/persistence/repositories"
	"village-registry/internal/core/domain"
	"village-registry/internal/pkg/password"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type roleSeed struct {
	name        string
	description string
	system      bool
	privileged  bool
	grants      []string
}

// componentActions lists every guarded (component, action) pair
var componentActions = map[string][]string{
	domain.ComponentDocument: {domain.ActionView, domain.ActionIssue, domain.ActionVerify},
	domain.ComponentResident: {domain.ActionView, domain.ActionCreate, domain.ActionUpdate, domain.ActionDelete},
	domain.ComponentUser:     {domain.ActionView, domain.ActionCreate, domain.ActionUpdate},
	domain.ComponentRole:     {domain.ActionView, domain.ActionUpdate, domain.ActionDelete},
}

// componentOrder keeps seeding output stable
var componentOrder = []string{
	domain.ComponentDocument,
	domain.ComponentResident,
	domain.ComponentUser,
	domain.ComponentRole,
}

var defaultRoles = []roleSeed{
	{
		name:        domain.RoleAdmin,
		description: "System administrator",
		system:      true,
		privileged:  true,
	},
	{
		name:        domain.RoleChief,
		description: "Village chief",
		system:      true,
		grants: []string{
			"document:view", "document:issue", "document:verify",
			"resident:view", "resident:create", "resident:update", "resident:delete",
			"user:view", "role:view",
		},
	},
	{
		name:        domain.RoleClerk,
		description: "Registry clerk",
		grants: []string{
			"document:view", "document:issue", "document:verify",
			"resident:view", "resident:create", "resident:update",
		},
	},
	{
		name:        domain.RoleResident,
		description: "Registered resident",
		system:      true,
		grants:      []string{"document:verify"},
	},
}

// Seeder bootstraps roles, permissions and the first administrator
type Seeder struct {
	db        *gorm.DB
	bootstrap BootstrapConfig
	log       *logrus.Entry
	hashCost  int
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, bootstrap BootstrapConfig, log *logrus.Entry) *Seeder {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Seeder{db: db, bootstrap: bootstrap, log: log, hashCost: password.DefaultCost}
}

// WithHashCost overrides the bcrypt cost used for the admin password
func (s *Seeder) WithHashCost(cost int) *Seeder {
	s.hashCost = cost
	return s
}

// Run executes all seeders in one transaction. Running it again changes nothing.
func (s *Seeder) Run(ctx context.Context) error {
	s.log.Info("running database seeders")

	err := repositories.New(s.db).Transaction(ctx, func(tx *repositories.Repositories) error {
		perms, err := s.seedPermissions(ctx, tx.Roles)
		if err != nil {
			return err
		}
		if err := s.seedRoles(ctx, tx.Roles, perms); err != nil {
			return err
		}
		return s.seedAdminUser(ctx, tx)
	})
	if err != nil {
		return errors.Wrap(err, "seed database")
	}

	s.log.Info("database seeding completed")
	return nil
}

// seedPermissions creates "component:action" permissions and maps each pair
func (s *Seeder) seedPermissions(ctx context.Context, roles repositories.RoleRepository) (map[string]uint, error) {
	perms := make(map[string]uint)
	for _, component := range componentOrder {
		for _, action := range componentActions[component] {
			name := domain.PermissionName(component, action)

			perm, err := roles.GetPermissionByName(ctx, name)
			if repositories.IsNotFound(err) {
				perm = &models.Permission{Name: name}
				err = roles.CreatePermission(ctx, perm)
			}
			if err != nil {
				return nil, errors.Wrapf(err, "permission %s", name)
			}
			perms[name] = perm.ID

			_, err = roles.GetComponentPermission(ctx, component, action)
			if repositories.IsNotFound(err) {
				err = roles.MapComponentPermission(ctx, component, action, perm.ID)
			}
			if err != nil {
				return nil, errors.Wrapf(err, "map %s", name)
			}
		}
	}
	return perms, nil
}

func (s *Seeder) seedRoles(ctx context.Context, roles repositories.RoleRepository, perms map[string]uint) error {
	for _, seed := range defaultRoles {
		role, err := roles.GetRoleByName(ctx, seed.name)
		if repositories.IsNotFound(err) {
			role = &models.Role{
				Name:         seed.name,
				Description:  seed.description,
				IsSystem:     seed.system,
				IsPrivileged: seed.privileged,
			}
			err = roles.CreateRole(ctx, role)
			if err == nil {
				s.log.WithField("role", seed.name).Info("role created")
			}
		}
		if err != nil {
			return errors.Wrapf(err, "role %s", seed.name)
		}

		grants := seed.grants
		if seed.privileged {
			// privileged roles hold every permission
			grants = make([]string, 0, len(perms))
			for name := range perms {
				grants = append(grants, name)
			}
		}
		for _, name := range grants {
			permID, ok := perms[name]
			if !ok {
				return errors.Errorf("role %s grants unknown permission %s", seed.name, name)
			}
			held, err := roles.HasPermission(ctx, role.ID, permID)
			if err != nil {
				return err
			}
			if held {
				continue
			}
			if err := roles.GrantPermission(ctx, role.ID, permID); err != nil {
				return errors.Wrapf(err, "grant %s to %s", name, seed.name)
			}
		}
	}
	return nil
}

// seedAdminUser creates the first administrator from BOOTSTRAP_ADMIN_*
func (s *Seeder) seedAdminUser(ctx context.Context, tx *repositories.Repositories) error {
	admin, err := tx.Roles.GetRoleByName(ctx, domain.RoleAdmin)
	if err != nil {
		return err
	}
	holders, err := tx.Roles.CountUsersWithRole(ctx, admin.ID)
	if err != nil {
		return err
	}
	if holders > 0 {
		return nil // Admin already exists
	}

	if s.bootstrap.AdminPassword == "" {
		s.log.Warn("no administrator exists and BOOTSTRAP_ADMIN_PASSWORD is empty; skipping admin seed")
		return nil
	}
	if !password.ValidatePassword(s.bootstrap.AdminPassword) {
		return errors.Errorf("BOOTSTRAP_ADMIN_PASSWORD must be at least %d characters", password.MinLength)
	}

	user, err := tx.Users.GetByUsername(ctx, s.bootstrap.AdminUsername)
	if repositories.IsNotFound(err) {
		hashed, herr := password.HashWithCost(s.bootstrap.AdminPassword, s.hashCost)
		if herr != nil {
			return herr
		}
		user = &models.User{
			Username: s.bootstrap.AdminUsername,
			Password: hashed,
			IsActive: true,
		}
		err = tx.Users.Create(ctx, user)
	}
	if err != nil {
		return errors.Wrap(err, "admin user")
	}

	if err := tx.Roles.AssignRole(ctx, user.ID, admin.ID); err != nil {
		return errors.Wrap(err, "assign admin role")
	}

	s.log.WithField("username", user.Username).Info("admin user created")
	return nil
}
