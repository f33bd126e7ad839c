package services

import (
	"context"
	"time"

	"village-registry/internal/adapters/persistence/repositories"
	"village-registry/internal/config"
	"village-registry/internal/core/domain"
	"village-registry/internal/pkg/jwt"
	"village-registry/internal/pkg/password"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AuthService handles authentication and login sessions
type AuthService struct {
	userRepo repositories.UserRepository
	roleRepo repositories.RoleRepository
	sessions *SessionStore
	cfg      *config.Config
	log      *logrus.Entry
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo repositories.UserRepository,
	roleRepo repositories.RoleRepository,
	sessions *SessionStore,
	cfg *config.Config,
	log *logrus.Entry,
) *AuthService {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &AuthService{
		userRepo: userRepo,
		roleRepo: roleRepo,
		sessions: sessions,
		cfg:      cfg,
		log:      log,
	}
}

// LoginInput represents login input
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User        *UserResponse `json:"user"`
	AccessToken string        `json:"access_token"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// Login authenticates a user and opens a session holding its role set
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResponse, error) {
	// 1. Find user by username
	user, err := s.userRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, storeError(err, "load user")
	}

	// 2. Check if user is active
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	// 3. Verify password
	if !password.Verify(input.Password, user.Password) {
		return nil, domain.ErrInvalidCredentials
	}

	// 4. Load roles once for the whole session
	roles, err := s.roleRepo.ListRolesByUser(ctx, user.ID)
	if err != nil {
		return nil, storeError(err, "load roles")
	}
	names := make([]string, 0, len(roles))
	privileged := false
	for _, r := range roles {
		names = append(names, r.Name)
		privileged = privileged || r.IsPrivileged
	}

	// 5. Open session
	session := &domain.Session{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		Username:   user.Username,
		Roles:      domain.NewRoleSet(names...),
		Privileged: privileged,
		ExpiresAt:  time.Now().Add(s.sessions.TTL()),
	}
	s.sessions.Put(session)

	// 6. Issue token bound to the session
	expiresAt := session.ExpiresAt
	if mins := s.cfg.JWT.AccessTokenMins; mins > 0 {
		if t := time.Now().Add(time.Duration(mins) * time.Minute); t.Before(expiresAt) {
			expiresAt = t
		}
	}
	token, err := jwt.GenerateAccessToken(user.ID, user.Username, session.ID, s.cfg.JWT.Secret, expiresAt)
	if err != nil {
		s.sessions.Delete(session.ID)
		return nil, errors.Wrap(err, "sign access token")
	}

	s.log.WithField("user_id", user.ID).Info("user logged in")

	return &AuthResponse{
		User:        newUserResponse(user.ToDomain(), names),
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

// Authenticate resolves an access token to a principal with a live session
func (s *AuthService) Authenticate(token string) (domain.Principal, error) {
	claims, err := jwt.ValidateAccessToken(token, s.cfg.JWT.Secret)
	if err != nil {
		return domain.Principal{}, errors.Wrap(domain.ErrInvalidCredentials, err.Error())
	}

	session, ok := s.sessions.Get(claims.SessionID())
	if !ok || session.UserID != claims.UserID {
		return domain.Principal{}, errors.Wrap(domain.ErrInvalidCredentials, "session ended")
	}

	return domain.Principal{UserID: claims.UserID, SessionID: session.ID}, nil
}

// Logout ends the principal's session; its cached role set goes with it
func (s *AuthService) Logout(ctx context.Context, p domain.Principal) error {
	if p.IsAnonymous() {
		return domain.ErrUnauthorized
	}
	s.sessions.Delete(p.SessionID)
	s.log.WithField("user_id", p.UserID).Info("user logged out")
	return nil
}

// Me returns the profile behind a principal
func (s *AuthService) Me(ctx context.Context, p domain.Principal) (*UserResponse, error) {
	session, ok := s.sessions.Get(p.SessionID)
	if p.IsAnonymous() || !ok || session.UserID != p.UserID {
		return nil, domain.ErrUnauthorized
	}

	user, err := s.userRepo.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, storeError(err, "load user")
	}
	return newUserResponse(user.ToDomain(), session.Roles.Names()), nil
}
