package services

import (
	"context"
	"crypto/subtle"
	"io/fs"
	"strings"
	"time"

	"village-registry/internal/adapters/persistence/models"
	"village-registry/internal/adapters/persistence/repositories"
	"village-registry/internal/core/domain"
	"village-registry/internal/pkg/metrics"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMaxIssueAttempts bounds reference number collisions per issuance
const DefaultMaxIssueAttempts = 3

// errReferenceTaken signals a unique violation on the reference number
var errReferenceTaken = errors.New("reference number already taken")

// DocumentOptions configures a DocumentService. Zero values pick defaults.
type DocumentOptions struct {
	Artifacts        ArtifactStore
	Metrics          *metrics.Metrics
	Logger           *logrus.Entry
	MaxIssueAttempts int
	StoreTimeout     time.Duration
	Now              func() time.Time
}

// IssuedDocument is what issuance hands back to the caller
type IssuedDocument struct {
	Bytes    []byte
	Document *domain.ProofOfAddressDocument
}

// DocumentService issues and verifies documents
type DocumentService struct {
	repos     *repositories.Repositories
	codes     CodeGenerator
	hasher    *ContentHasher
	renderer  Renderer
	locker    ResidentLocker
	artifacts ArtifactStore
	metrics   *metrics.Metrics
	log       *logrus.Entry

	maxAttempts  int
	storeTimeout time.Duration
	now          func() time.Time
}

// NewDocumentService creates a new document service
func NewDocumentService(
	repos *repositories.Repositories,
	codes CodeGenerator,
	renderer Renderer,
	locker ResidentLocker,
	opts DocumentOptions,
) *DocumentService {
	s := &DocumentService{
		repos:        repos,
		codes:        codes,
		hasher:       NewContentHasher(),
		renderer:     renderer,
		locker:       locker,
		artifacts:    opts.Artifacts,
		metrics:      opts.Metrics,
		log:          opts.Logger,
		maxAttempts:  opts.MaxIssueAttempts,
		storeTimeout: opts.StoreTimeout,
		now:          opts.Now,
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = DefaultMaxIssueAttempts
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = DefaultStoreTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	if s.locker == nil {
		s.locker = NewLocalResidentLocker()
	}
	return s
}

// IssueProofOfAddress renders a proof of address for the resident's current
// address and records it. The returned bytes hash to the stored content hash.
//
// Rendering runs under the caller's context with no resident lock held. The
// lock and the store timeout only cover recording, which re-checks that the
// resident still exists and still lives at the rendered address.
func (s *DocumentService) IssueProofOfAddress(ctx context.Context, residentID, issuerID uint) (issued *IssuedDocument, err error) {
	start := s.now()
	ctx, span := tracer.Start(ctx, "DocumentService.IssueProofOfAddress")
	span.SetAttributes(
		attribute.Int64("resident.id", int64(residentID)),
		attribute.Int64("issuer.id", int64(issuerID)),
	)
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = outcomeOf(err)
		}
		s.metrics.IncIssued(string(domain.DocumentTypeProofOfAddress), outcome)
		s.metrics.ObserveIssueLatency(s.now().Sub(start))
		endSpan(span, err)
	}()

	if residentID == 0 || issuerID == 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "resident and issuer are required")
	}

	storeCtx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	resident, address, err := s.currentAddress(storeCtx, residentID)
	cancel()
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		issued, err = s.issueOnce(ctx, resident, address, issuerID)
		if err == nil {
			s.log.WithFields(logrus.Fields{
				"reference":   issued.Document.ReferenceNumber,
				"resident_id": residentID,
				"issuer_id":   issuerID,
				"attempt":     attempt,
			}).Info("proof of address issued")
			return issued, nil
		}
		if !errors.Is(err, errReferenceTaken) {
			return nil, err
		}
		s.metrics.IncRetry()
		s.log.WithFields(logrus.Fields{
			"resident_id": residentID,
			"attempt":     attempt,
		}).Warn("reference number collision, retrying")
	}

	return nil, errors.Wrapf(domain.ErrConflict, "no free reference number after %d attempts", s.maxAttempts)
}

func (s *DocumentService) issueOnce(ctx context.Context, resident *domain.Resident, address *domain.Address, issuerID uint) (*IssuedDocument, error) {
	ref := s.codes.GenerateReferenceNumber()
	code := s.codes.GenerateVerificationCode(resident.IDNumber, address.Line(), ref)
	generatedAt := s.now().UTC()

	data, err := s.renderer.Render(ctx, domain.SnapshotResident(resident), domain.SnapshotAddress(address), domain.RenderMeta{
		ReferenceNumber:  ref,
		VerificationCode: code,
		IssuedAt:         generatedAt,
	})
	if err != nil {
		if errors.Is(err, domain.ErrRender) {
			return nil, err
		}
		return nil, errors.Wrapf(domain.ErrRender, "render %s: %v", ref, err)
	}

	doc := &domain.ProofOfAddressDocument{
		DocumentRecord: domain.DocumentRecord{
			ID:               uuid.NewString(),
			DocumentType:     domain.DocumentTypeProofOfAddress,
			ReferenceNumber:  ref,
			GeneratedAt:      generatedAt,
			GeneratedBy:      issuerID,
			Subject:          domain.ResidentSubject{ResidentID: resident.ID},
			VerificationCode: code,
			ContentHash:      s.hasher.Hash(data),
		},
		AddressID: address.ID,
	}

	if err := s.record(ctx, doc, data); err != nil {
		return nil, err
	}
	return &IssuedDocument{Bytes: data, Document: doc}, nil
}

// record stores the artifact and commits the audit row under the resident lock
func (s *DocumentService) record(ctx context.Context, doc *domain.ProofOfAddressDocument, data []byte) error {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	residentID := doc.Subject.EntityID()
	unlock, err := s.locker.Lock(ctx, residentID)
	if err != nil {
		return errors.Wrapf(domain.ErrTransientStore, "lock resident %d: %v", residentID, err)
	}
	defer unlock()

	if s.artifacts != nil {
		path, err := s.artifacts.Save(ctx, doc.ReferenceNumber+".pdf", data)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				return errReferenceTaken
			}
			return errors.Wrapf(err, "save artifact %s", doc.ReferenceNumber)
		}
		doc.FilePath = path
	}

	err = s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		exists, err := tx.Residents.Exists(ctx, residentID)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Wrapf(domain.ErrNotFound, "resident %d", residentID)
		}

		residences, err := tx.Residences.ListByResident(ctx, residentID)
		if err != nil {
			return err
		}
		now := s.now()
		for _, r := range residences {
			if r.AddressID == doc.AddressID && r.ToDomain().IsCurrentAt(now) {
				return tx.Documents.CreateProofOfAddress(ctx,
					models.NewDocument(&doc.DocumentRecord),
					&models.ProofOfAddressDocument{AddressID: doc.AddressID},
				)
			}
		}
		return errors.Wrapf(domain.ErrConflict, "resident %d moved while the document was rendered", residentID)
	})
	if err != nil {
		s.discardArtifact(ctx, doc.FilePath)
		doc.FilePath = ""
		if repositories.IsDuplicate(err) {
			return errReferenceTaken
		}
		return storeError(err, "record document")
	}
	return nil
}

// currentAddress loads the resident and the address of the residence
// covering now
func (s *DocumentService) currentAddress(ctx context.Context, residentID uint) (*domain.Resident, *domain.Address, error) {
	resident, err := s.repos.Residents.GetByID(ctx, residentID)
	if err != nil {
		return nil, nil, storeError(err, "load resident")
	}

	residences, err := s.repos.Residences.ListByResident(ctx, residentID)
	if err != nil {
		return nil, nil, storeError(err, "load residences")
	}

	now := s.now()
	for _, r := range residences {
		if r.Address != nil && r.ToDomain().IsCurrentAt(now) {
			return resident.ToDomain(), r.Address.ToDomain(), nil
		}
	}

	return nil, nil, errors.Wrapf(domain.ErrNotFound, "resident %d has no current address", residentID)
}

func (s *DocumentService) discardArtifact(ctx context.Context, path string) {
	if s.artifacts == nil || path == "" {
		return
	}
	if err := s.artifacts.Remove(context.WithoutCancel(ctx), path); err != nil {
		s.log.WithError(err).WithField("path", path).Warn("failed to remove orphaned artifact")
	}
}

// Verify checks a presented document against the audit trail. A nil document
// checks only the reference; any presented bytes, even none at all, are
// compared with the recorded hash. A tampered document is a result, not an error.
func (s *DocumentService) Verify(ctx context.Context, referenceNumber string, resubmitted []byte) (result *domain.VerificationResult, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Verify")
	defer func() {
		if result != nil {
			span.SetAttributes(attribute.String("verification.reason", string(result.Reason)))
			s.metrics.IncVerification(string(result.Reason))
		}
		endSpan(span, err)
	}()

	record, err := s.lookup(ctx, referenceNumber)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.VerificationResult{Valid: false, Reason: domain.ReasonNotFound}, nil
		}
		return nil, err
	}

	// Records without a digest can only be checked by reference
	if resubmitted == nil || record.ContentHash == "" {
		return &domain.VerificationResult{Valid: true, Record: record, Reason: domain.ReasonMetadataOnly}, nil
	}

	if !s.hasher.Matches(resubmitted, record.ContentHash) {
		s.log.WithField("reference", record.ReferenceNumber).Warn("presented document does not match recorded hash")
		return &domain.VerificationResult{Valid: false, Record: record, Reason: domain.ReasonTampered}, nil
	}

	return &domain.VerificationResult{Valid: true, Record: record, Reason: domain.ReasonAuthentic}, nil
}

// VerifyCode checks the verification code printed on a document
func (s *DocumentService) VerifyCode(ctx context.Context, referenceNumber, code string) (result *domain.VerificationResult, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.VerifyCode")
	defer func() {
		if result != nil {
			s.metrics.IncVerification(string(result.Reason))
		}
		endSpan(span, err)
	}()

	record, err := s.lookup(ctx, referenceNumber)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.VerificationResult{Valid: false, Reason: domain.ReasonNotFound}, nil
		}
		return nil, err
	}

	presented := []byte(NormalizeVerificationCode(code))
	if record.VerificationCode == "" || subtle.ConstantTimeCompare(presented, []byte(record.VerificationCode)) != 1 {
		return &domain.VerificationResult{Valid: false, Record: record, Reason: domain.ReasonCodeMismatch}, nil
	}

	return &domain.VerificationResult{Valid: true, Record: record, Reason: domain.ReasonAuthentic}, nil
}

// GetByReference loads a proof of address by reference number
func (s *DocumentService) GetByReference(ctx context.Context, referenceNumber string) (*domain.ProofOfAddressDocument, error) {
	record, err := s.lookup(ctx, referenceNumber)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	poa, err := s.repos.Documents.GetProofOfAddress(ctx, record.ID)
	if err != nil {
		return nil, storeError(err, "load proof of address")
	}

	return &domain.ProofOfAddressDocument{DocumentRecord: *record, AddressID: poa.AddressID}, nil
}

// ListForResident lists documents issued for a resident, newest first. It
// works after the resident has been deleted.
func (s *DocumentService) ListForResident(ctx context.Context, residentID uint, offset, limit int) ([]*domain.DocumentRecord, int64, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	subject := domain.ResidentSubject{ResidentID: residentID}
	docs, total, err := s.repos.Documents.ListByRelatedEntity(ctx, string(subject.Kind()), subject.EntityID(), offset, limit)
	if err != nil {
		return nil, 0, storeError(err, "list documents")
	}

	records := make([]*domain.DocumentRecord, 0, len(docs))
	for _, d := range docs {
		rec, err := d.ToDomain()
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, nil
}

func (s *DocumentService) lookup(ctx context.Context, referenceNumber string) (*domain.DocumentRecord, error) {
	referenceNumber = strings.ToUpper(strings.TrimSpace(referenceNumber))
	if referenceNumber == "" {
		return nil, errors.Wrap(domain.ErrInvalidInput, "reference number is required")
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	doc, err := s.repos.Documents.GetByReferenceNumber(ctx, referenceNumber)
	if err != nil {
		return nil, storeError(err, "load document "+referenceNumber)
	}
	return doc.ToDomain()
}

// outcomeOf labels a failure for metrics
func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrRender):
		return "render_error"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrTransientStore):
		return "transient"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
