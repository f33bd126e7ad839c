package services

import (
	"context"

	"village-registry/internal/adapters/persistence/repositories"
	"village-registry/internal/core/domain"
	"village-registry/internal/pkg/metrics"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SecurityGate decides whether a principal may perform an action on a component
type SecurityGate struct {
	sessions *SessionStore
	roles    repositories.RoleRepository
	metrics  *metrics.Metrics
	log      *logrus.Entry
}

// NewSecurityGate creates a new security gate
func NewSecurityGate(sessions *SessionStore, roles repositories.RoleRepository, m *metrics.Metrics, log *logrus.Entry) *SecurityGate {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SecurityGate{sessions: sessions, roles: roles, metrics: m, log: log}
}

// Session returns the live session of p
func (g *SecurityGate) Session(p domain.Principal) (*domain.Session, error) {
	if p.IsAnonymous() {
		return nil, errors.Wrap(domain.ErrUnauthorized, "not authenticated")
	}
	session, ok := g.sessions.Get(p.SessionID)
	if !ok || session.UserID != p.UserID {
		return nil, errors.Wrap(domain.ErrUnauthorized, "session expired or logged out")
	}
	return session, nil
}

// HasRole reports whether p's session holds role
func (g *SecurityGate) HasRole(p domain.Principal, role string) bool {
	session, err := g.Session(p)
	if err != nil {
		return false
	}
	return session.Roles.Has(role)
}

// Authorize allows p when its session holds a privileged role or a role
// granted the permission mapped to (componentID, action)
func (g *SecurityGate) Authorize(ctx context.Context, p domain.Principal, componentID, action string) error {
	session, err := g.Session(p)
	if err != nil {
		return g.deny(p, componentID, action, err)
	}

	if session.Privileged {
		return nil
	}

	allowed, err := g.roles.RolesGrantComponentAction(ctx, session.Roles.Names(), componentID, action)
	if err != nil {
		// Fail closed
		return storeError(err, "check permission")
	}
	if !allowed {
		return g.deny(p, componentID, action,
			errors.Wrapf(domain.ErrUnauthorized, "%s is not permitted", domain.PermissionName(componentID, action)))
	}
	return nil
}

func (g *SecurityGate) deny(p domain.Principal, componentID, action string, err error) error {
	g.metrics.IncDenied(componentID, action)
	g.log.WithFields(logrus.Fields{
		"user_id":   p.UserID,
		"component": componentID,
		"action":    action,
	}).Warn("access denied")
	return err
}

// ProtectedDocuments guards the document service with the security gate
type ProtectedDocuments struct {
	gate *SecurityGate
	docs *DocumentService
}

// NewProtectedDocuments wraps docs with gate
func NewProtectedDocuments(gate *SecurityGate, docs *DocumentService) *ProtectedDocuments {
	return &ProtectedDocuments{gate: gate, docs: docs}
}

// IssueProofOfAddress issues on behalf of p
func (d *ProtectedDocuments) IssueProofOfAddress(ctx context.Context, p domain.Principal, residentID uint) (*IssuedDocument, error) {
	if err := d.gate.Authorize(ctx, p, domain.ComponentDocument, domain.ActionIssue); err != nil {
		return nil, err
	}
	return d.docs.IssueProofOfAddress(ctx, residentID, p.UserID)
}

// Verify checks a presented document
func (d *ProtectedDocuments) Verify(ctx context.Context, p domain.Principal, referenceNumber string, resubmitted []byte) (*domain.VerificationResult, error) {
	if err := d.gate.Authorize(ctx, p, domain.ComponentDocument, domain.ActionVerify); err != nil {
		return nil, err
	}
	return d.docs.Verify(ctx, referenceNumber, resubmitted)
}

// VerifyCode checks a printed verification code
func (d *ProtectedDocuments) VerifyCode(ctx context.Context, p domain.Principal, referenceNumber, code string) (*domain.VerificationResult, error) {
	if err := d.gate.Authorize(ctx, p, domain.ComponentDocument, domain.ActionVerify); err != nil {
		return nil, err
	}
	return d.docs.VerifyCode(ctx, referenceNumber, code)
}

// GetByReference loads a document record
func (d *ProtectedDocuments) GetByReference(ctx context.Context, p domain.Principal, referenceNumber string) (*domain.ProofOfAddressDocument, error) {
	if err := d.gate.Authorize(ctx, p, domain.ComponentDocument, domain.ActionView); err != nil {
		return nil, err
	}
	return d.docs.GetByReference(ctx, referenceNumber)
}

// ListForResident lists the audit trail of a resident
func (d *ProtectedDocuments) ListForResident(ctx context.Context, p domain.Principal, residentID uint, offset, limit int) ([]*domain.DocumentRecord, int64, error) {
	if err := d.gate.Authorize(ctx, p, domain.ComponentDocument, domain.ActionView); err != nil {
		return nil, 0, err
	}
	return d.docs.ListForResident(ctx, residentID, offset, limit)
}

// ProtectedResidents guards the resident service with the security gate
type ProtectedResidents struct {
	gate      *SecurityGate
	residents *ResidentService
}

// NewProtectedResidents wraps residents with gate
func NewProtectedResidents(gate *SecurityGate, residents *ResidentService) *ProtectedResidents {
	return &ProtectedResidents{gate: gate, residents: residents}
}

// Create registers a resident
func (r *ProtectedResidents) Create(ctx context.Context, p domain.Principal, input *CreateResidentInput) (*ResidentDetails, error) {
	if err := r.gate.Authorize(ctx, p, domain.ComponentResident, domain.ActionCreate); err != nil {
		return nil, err
	}
	return r.residents.Create(ctx, input)
}

// Get loads a resident with details
func (r *ProtectedResidents) Get(ctx context.Context, p domain.Principal, id uint) (*ResidentDetails, error) {
	if err := r.gate.Authorize(ctx, p, domain.ComponentResident, domain.ActionView); err != nil {
		return nil, err
	}
	return r.residents.Get(ctx, id)
}

// List lists residents
func (r *ProtectedResidents) List(ctx context.Context, p domain.Principal, search string, offset, limit int) ([]*domain.Resident, int64, error) {
	if err := r.gate.Authorize(ctx, p, domain.ComponentResident, domain.ActionView); err != nil {
		return nil, 0, err
	}
	return r.residents.List(ctx, search, offset, limit)
}

// AddQualification records a qualification
func (r *ProtectedResidents) AddQualification(ctx context.Context, p domain.Principal, residentID uint, input *QualificationInput) (*domain.Qualification, error) {
	if err := r.gate.Authorize(ctx, p, domain.ComponentResident, domain.ActionUpdate); err != nil {
		return nil, err
	}
	return r.residents.AddQualification(ctx, residentID, input)
}

// AddDependent records a dependent
func (r *ProtectedResidents) AddDependent(ctx context.Context, p domain.Principal, residentID uint, input *DependentInput) (*domain.Dependent, error) {
	if err := r.gate.Authorize(ctx, p, domain.ComponentResident, domain.ActionUpdate); err != nil {
		return nil, err
	}
	return r.residents.AddDependent(ctx, residentID, input)
}

// Relocate moves a resident to a new address
func (r *ProtectedResidents) Relocate(ctx context.Context, p domain.Principal, residentID uint, input *RelocateInput) (*domain.Residence, error) {
	if err := r.gate.Authorize(ctx, p, domain.ComponentResident, domain.ActionUpdate); err != nil {
		return nil, err
	}
	return r.residents.Relocate(ctx, residentID, input)
}

// DeleteResident removes a resident and everything hanging off it
func (r *ProtectedResidents) DeleteResident(ctx context.Context, p domain.Principal, residentID uint) error {
	if err := r.gate.Authorize(ctx, p, domain.ComponentResident, domain.ActionDelete); err != nil {
		return err
	}
	return r.residents.DeleteResident(ctx, residentID)
}
