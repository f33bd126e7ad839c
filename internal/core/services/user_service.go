package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"village-registry/internal/adapters/persistence/models"
	"village-registry/internal/adapters/persistence/repositories"
	"village-registry/internal/core/domain"
	"village-registry/internal/pkg/password"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// UserService handles user accounts and role administration
type UserService struct {
	userRepo repositories.UserRepository
	roleRepo repositories.RoleRepository
	sessions *SessionStore
	log      *logrus.Entry

	// bcrypt cost; tests lower it
	hashCost int
}

// NewUserService creates a new user service
func NewUserService(
	userRepo repositories.UserRepository,
	roleRepo repositories.RoleRepository,
	sessions *SessionStore,
	log *logrus.Entry,
) *UserService {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &UserService{
		userRepo: userRepo,
		roleRepo: roleRepo,
		sessions: sessions,
		log:      log,
		hashCost: password.DefaultCost,
	}
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID         uint      `json:"id"`
	Username   string    `json:"username"`
	IsActive   bool      `json:"is_active"`
	ResidentID *uint     `json:"resident_id,omitempty"`
	Roles      []string  `json:"roles"`
	CreatedAt  time.Time `json:"created_at"`
}

func newUserResponse(u *domain.User, roles []string) *UserResponse {
	sorted := append([]string(nil), roles...)
	sort.Strings(sorted)
	return &UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		IsActive:   u.IsActive,
		ResidentID: u.ResidentID,
		Roles:      sorted,
		CreatedAt:  u.CreatedAt,
	}
}

// CreateUserInput represents create user input
type CreateUserInput struct {
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	ResidentID *uint    `json:"resident_id"`
	Roles      []string `json:"roles"`
}

// ListUsersOutput represents list users output
type ListUsersOutput struct {
	Users []*UserResponse `json:"users"`
	Total int64           `json:"total"`
}

// CreateUser creates an account and assigns the requested roles
func (s *UserService) CreateUser(ctx context.Context, input *CreateUserInput) (*UserResponse, error) {
	input.Username = strings.TrimSpace(input.Username)
	if len(input.Username) < 3 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "username must be at least 3 characters")
	}
	if !password.ValidatePassword(input.Password) {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "password must be at least %d characters", password.MinLength)
	}

	// 1. Check if username already exists
	exists, err := s.userRepo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		return nil, storeError(err, "check username")
	}
	if exists {
		return nil, errors.Wrap(domain.ErrDuplicateEntry, "username already exists")
	}

	// 2. Resolve roles before writing anything
	roles := make([]*models.Role, 0, len(input.Roles))
	for _, name := range input.Roles {
		role, err := s.roleRepo.GetRoleByName(ctx, strings.ToUpper(strings.TrimSpace(name)))
		if err != nil {
			return nil, storeError(err, "role "+name)
		}
		roles = append(roles, role)
	}

	// 3. Hash password
	hashed, err := password.HashWithCost(input.Password, s.hashCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	// 4. Create user
	user := &models.User{
		Username:   input.Username,
		Password:   hashed,
		IsActive:   true,
		ResidentID: input.ResidentID,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, storeError(err, "create user")
	}

	names := make([]string, 0, len(roles))
	for _, role := range roles {
		if err := s.roleRepo.AssignRole(ctx, user.ID, role.ID); err != nil {
			return nil, storeError(err, "assign role "+role.Name)
		}
		names = append(names, role.Name)
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "roles": names}).Info("user created")
	return newUserResponse(user.ToDomain(), names), nil
}

// ListUsers lists users with pagination
func (s *UserService) ListUsers(ctx context.Context, offset, limit int) (*ListUsersOutput, error) {
	users, total, err := s.userRepo.List(ctx, offset, limit)
	if err != nil {
		return nil, storeError(err, "list users")
	}

	out := &ListUsersOutput{Users: make([]*UserResponse, len(users)), Total: total}
	for i, u := range users {
		roles, err := s.roleRepo.ListRolesByUser(ctx, u.ID)
		if err != nil {
			return nil, storeError(err, "load roles")
		}
		out.Users[i] = newUserResponse(u.ToDomain(), roleNames(roles))
	}
	return out, nil
}

// AssignRole gives a role to a user. Open sessions of the user end so the
// next login picks up the new role set.
func (s *UserService) AssignRole(ctx context.Context, userID uint, roleName string) error {
	role, err := s.userAndRole(ctx, userID, roleName)
	if err != nil {
		return err
	}

	if err := s.roleRepo.AssignRole(ctx, userID, role.ID); err != nil {
		if repositories.IsDuplicate(err) {
			return errors.Wrapf(domain.ErrDuplicateEntry, "user %d already holds %s", userID, role.Name)
		}
		return storeError(err, "assign role")
	}

	s.endSessions(userID)
	s.log.WithFields(logrus.Fields{"user_id": userID, "role": role.Name}).Info("role assigned")
	return nil
}

// RevokeRole removes a role from a user and ends the user's sessions
func (s *UserService) RevokeRole(ctx context.Context, userID uint, roleName string) error {
	role, err := s.userAndRole(ctx, userID, roleName)
	if err != nil {
		return err
	}

	n, err := s.roleRepo.RevokeRole(ctx, userID, role.ID)
	if err != nil {
		return storeError(err, "revoke role")
	}
	if n == 0 {
		return errors.Wrapf(domain.ErrNotFound, "user %d does not hold %s", userID, role.Name)
	}

	s.endSessions(userID)
	s.log.WithFields(logrus.Fields{"user_id": userID, "role": role.Name}).Info("role revoked")
	return nil
}

// ListRoles lists all roles
func (s *UserService) ListRoles(ctx context.Context) ([]*domain.Role, error) {
	rows, err := s.roleRepo.ListRoles(ctx)
	if err != nil {
		return nil, storeError(err, "list roles")
	}
	roles := make([]*domain.Role, len(rows))
	for i, r := range rows {
		roles[i] = r.ToDomain()
	}
	return roles, nil
}

// DeleteRole deletes a non-system role
func (s *UserService) DeleteRole(ctx context.Context, id uint) error {
	role, err := s.roleRepo.GetRoleByID(ctx, id)
	if err != nil {
		return storeError(err, "load role")
	}
	if role.IsSystem {
		return errors.Wrapf(domain.ErrSystemRole, "role %s", role.Name)
	}

	if err := s.roleRepo.DeleteRole(ctx, id); err != nil {
		return storeError(err, "delete role")
	}

	s.log.WithField("role", role.Name).Info("role deleted")
	return nil
}

func (s *UserService) userAndRole(ctx context.Context, userID uint, roleName string) (*models.Role, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, storeError(err, "load user")
	}
	role, err := s.roleRepo.GetRoleByName(ctx, strings.ToUpper(strings.TrimSpace(roleName)))
	if err != nil {
		return nil, storeError(err, "load role "+roleName)
	}
	return role, nil
}

func (s *UserService) endSessions(userID uint) {
	if s.sessions == nil {
		return
	}
	if n := s.sessions.DeleteByUser(userID); n > 0 {
		s.log.WithFields(logrus.Fields{"user_id": userID, "sessions": n}).Info("sessions ended after role change")
	}
}

func roleNames(roles []*models.Role) []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	return names
}
