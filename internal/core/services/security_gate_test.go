package services

import (
	"context"
	"testing"
	"time"

	"village-registry/internal/adapters/persistence/models"
	"village-registry/internal/config"
	"village-registry/internal/core/domain"
	"village-registry/internal/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type SecurityGateSuite struct {
	suite.Suite
	f        *fixture
	sessions *SessionStore
	gate     *SecurityGate
	auth     *AuthService
	users    *UserService
	docs     *ProtectedDocuments
	john     *seededResident
}

func TestSecurityGateSuite(t *testing.T) {
	suite.Run(t, new(SecurityGateSuite))
}

func (s *SecurityGateSuite) SetupTest() {
	ctx := context.Background()
	t := s.T()
	s.f = newFixture(t)

	seeder := config.NewSeeder(s.f.db, config.BootstrapConfig{AdminUsername: "admin", AdminPassword: "admin-password"}, logger.Discard()).
		WithHashCost(bcrypt.MinCost)
	s.Require().NoError(seeder.Run(ctx))

	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret", AccessTokenMins: 60}}
	s.sessions = NewSessionStore(time.Hour)
	s.gate = NewSecurityGate(s.sessions, s.f.repos.Roles, s.f.metrics, logger.Discard())
	s.auth = NewAuthService(s.f.repos.Users, s.f.repos.Roles, s.sessions, cfg, logger.Discard())
	s.users = NewUserService(s.f.repos.Users, s.f.repos.Roles, s.sessions, logger.Discard())
	s.users.hashCost = bcrypt.MinCost
	s.docs = NewProtectedDocuments(s.gate, s.f.documentService(nil, nil, DocumentOptions{}))
	s.john = s.f.seedJohnDoe(t)

	_, err := s.users.CreateUser(ctx, &CreateUserInput{Username: "clerk", Password: "clerk-password", Roles: []string{domain.RoleClerk}})
	s.Require().NoError(err)
	_, err = s.users.CreateUser(ctx, &CreateUserInput{Username: "resident", Password: "resident-password", Roles: []string{domain.RoleResident}})
	s.Require().NoError(err)
}

func (s *SecurityGateSuite) login(username, password string) (domain.Principal, string) {
	resp, err := s.auth.Login(context.Background(), &LoginInput{Username: username, Password: password})
	s.Require().NoError(err)
	p, err := s.auth.Authenticate(resp.AccessToken)
	s.Require().NoError(err)
	return p, resp.AccessToken
}

func (s *SecurityGateSuite) TestResidentRoleDeniedBeforeAnyMutation() {
	ctx := context.Background()
	p, _ := s.login("resident", "resident-password")

	documentsBefore := s.f.count(s.T(), &models.Document{})
	_, err := s.docs.IssueProofOfAddress(ctx, p, s.john.resident.ID)

	s.ErrorIs(err, domain.ErrUnauthorized)
	s.Equal(documentsBefore, s.f.count(s.T(), &models.Document{}))
	s.Zero(s.f.count(s.T(), &models.ProofOfAddressDocument{}))
	s.Equal(1.0, testutil.ToFloat64(s.f.metrics.AuthorizationDenied.WithLabelValues("document", "issue")))
}

func (s *SecurityGateSuite) TestResidentRoleMayVerify() {
	ctx := context.Background()
	p, _ := s.login("resident", "resident-password")

	result, err := s.docs.Verify(ctx, p, "POA-20240101-000000000000", nil)
	s.Require().NoError(err)
	s.Equal(domain.ReasonNotFound, result.Reason)
}

func (s *SecurityGateSuite) TestClerkMayIssue() {
	ctx := context.Background()
	p, _ := s.login("clerk", "clerk-password")

	issued, err := s.docs.IssueProofOfAddress(ctx, p, s.john.resident.ID)
	s.Require().NoError(err)
	s.Equal(p.UserID, issued.Document.GeneratedBy)
}

func (s *SecurityGateSuite) TestPrivilegedRoleAllowsUnmappedAction() {
	p, _ := s.login("admin", "admin-password")

	s.NoError(s.gate.Authorize(context.Background(), p, "reports", "export"))
	s.True(s.gate.HasRole(p, domain.RoleAdmin))
	s.False(s.gate.HasRole(p, domain.RoleClerk))
}

func (s *SecurityGateSuite) TestAnonymousDenied() {
	err := s.gate.Authorize(context.Background(), domain.Principal{}, domain.ComponentDocument, domain.ActionVerify)
	s.ErrorIs(err, domain.ErrUnauthorized)
}

func (s *SecurityGateSuite) TestForgedSessionDenied() {
	p, _ := s.login("clerk", "clerk-password")
	p.UserID++

	err := s.gate.Authorize(context.Background(), p, domain.ComponentDocument, domain.ActionIssue)
	s.ErrorIs(err, domain.ErrUnauthorized)
}

func (s *SecurityGateSuite) TestLogoutInvalidatesRoleSet() {
	ctx := context.Background()
	p, token := s.login("clerk", "clerk-password")
	s.Require().NoError(s.gate.Authorize(ctx, p, domain.ComponentDocument, domain.ActionIssue))

	s.Require().NoError(s.auth.Logout(ctx, p))

	s.ErrorIs(s.gate.Authorize(ctx, p, domain.ComponentDocument, domain.ActionIssue), domain.ErrUnauthorized)
	s.False(s.gate.HasRole(p, domain.RoleClerk))
	_, err := s.auth.Authenticate(token)
	s.ErrorIs(err, domain.ErrInvalidCredentials)
}

func (s *SecurityGateSuite) TestRoleChangeEndsSessions() {
	ctx := context.Background()
	p, _ := s.login("resident", "resident-password")

	s.Require().NoError(s.users.AssignRole(ctx, p.UserID, domain.RoleClerk))
	s.ErrorIs(s.gate.Authorize(ctx, p, domain.ComponentDocument, domain.ActionIssue), domain.ErrUnauthorized)

	p, _ = s.login("resident", "resident-password")
	s.NoError(s.gate.Authorize(ctx, p, domain.ComponentDocument, domain.ActionIssue))
}

func (s *SecurityGateSuite) TestLoginFailures() {
	ctx := context.Background()

	_, err := s.auth.Login(ctx, &LoginInput{Username: "clerk", Password: "wrong-password"})
	s.ErrorIs(err, domain.ErrInvalidCredentials)

	_, err = s.auth.Login(ctx, &LoginInput{Username: "nobody", Password: "whatever1"})
	s.ErrorIs(err, domain.ErrInvalidCredentials)

	user, err := s.f.repos.Users.GetByUsername(ctx, "clerk")
	s.Require().NoError(err)
	s.Require().NoError(s.f.db.Model(&models.User{}).Where("id = ?", user.ID).Update("is_active", false).Error)

	_, err = s.auth.Login(ctx, &LoginInput{Username: "clerk", Password: "clerk-password"})
	s.ErrorIs(err, domain.ErrUserInactive)
}

func (s *SecurityGateSuite) TestMe() {
	p, _ := s.login("clerk", "clerk-password")

	me, err := s.auth.Me(context.Background(), p)
	s.Require().NoError(err)
	s.Equal("clerk", me.Username)
	s.Equal([]string{domain.RoleClerk}, me.Roles)
}

func TestSessionStore_DeleteByUser(t *testing.T) {
	store := NewSessionStore(time.Minute)
	for _, id := range []string{"a", "b"} {
		store.Put(&domain.Session{ID: id, UserID: 1, ExpiresAt: time.Now().Add(time.Minute)})
	}
	store.Put(&domain.Session{ID: "c", UserID: 2, ExpiresAt: time.Now().Add(time.Minute)})

	assert.Equal(t, 2, store.DeleteByUser(1))
	_, ok := store.Get("a")
	assert.False(t, ok)
	_, ok = store.Get("c")
	require.True(t, ok)
}

func TestSessionStore_ExpiredSessionNotStored(t *testing.T) {
	store := NewSessionStore(time.Minute)
	store.Put(&domain.Session{ID: "old", UserID: 1, ExpiresAt: time.Now().Add(-time.Second)})

	_, ok := store.Get("old")
	assert.False(t, ok)
}
