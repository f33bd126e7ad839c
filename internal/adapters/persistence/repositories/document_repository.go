package repositories

import (
	"context"

	"village-registry/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// DocumentRepository handles the document audit trail. It only appends and
// reads; the models refuse updates and deletes.
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// CreateProofOfAddress inserts the document row and its proof-of-address row
func (r *DocumentRepository) CreateProofOfAddress(ctx context.Context, doc *models.Document, poa *models.ProofOfAddressDocument) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return err
	}
	poa.DocumentID = doc.ID
	return r.db.WithContext(ctx).Omit("Document").Create(poa).Error
}

// GetByReferenceNumber gets a document by its reference number
func (r *DocumentRepository) GetByReferenceNumber(ctx context.Context, ref string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).Where("reference_number = ?", ref).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetProofOfAddress gets the proof-of-address row for a document
func (r *DocumentRepository) GetProofOfAddress(ctx context.Context, documentID string) (*models.ProofOfAddressDocument, error) {
	var poa models.ProofOfAddressDocument
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).First(&poa).Error
	if err != nil {
		return nil, err
	}
	return &poa, nil
}

// ExistsByReferenceNumber reports whether a document carries ref
func (r *DocumentRepository) ExistsByReferenceNumber(ctx context.Context, ref string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Document{}).Where("reference_number = ?", ref).Count(&count).Error
	return count > 0, err
}

// ListByRelatedEntity lists documents issued for a subject, newest first
func (r *DocumentRepository) ListByRelatedEntity(ctx context.Context, entityType string, entityID uint, offset, limit int) ([]*models.Document, int64, error) {
	var docs []*models.Document
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("related_entity_type = ? AND related_entity_id = ?", entityType, entityID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("generated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&docs).Error

	return docs, total, err
}

// ListWithArtifacts lists documents that have a persisted artifact file,
// in batches keyed by id
func (r *DocumentRepository) ListWithArtifacts(ctx context.Context, afterID string, limit int) ([]*models.Document, error) {
	var docs []*models.Document
	err := r.db.WithContext(ctx).
		Where("file_path IS NOT NULL AND file_path <> ''").
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&docs).Error
	return docs, err
}
