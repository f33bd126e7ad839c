package repositories

import (
	"context"
	"time"

	"village-registry/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// ResidentRepository handles resident data access
type ResidentRepository struct {
	db *gorm.DB
}

// NewResidentRepository creates a new resident repository
func NewResidentRepository(db *gorm.DB) *ResidentRepository {
	return &ResidentRepository{db: db}
}

// Create creates a new resident
func (r *ResidentRepository) Create(ctx context.Context, resident *models.Resident) error {
	return r.db.WithContext(ctx).Create(resident).Error
}

// GetByID gets a resident by ID
func (r *ResidentRepository) GetByID(ctx context.Context, id uint) (*models.Resident, error) {
	var resident models.Resident
	err := r.db.WithContext(ctx).First(&resident, id).Error
	if err != nil {
		return nil, err
	}
	return &resident, nil
}

// Exists checks if a resident row is present
func (r *ResidentRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Resident{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// List lists residents with pagination, optionally filtered by name or id number
func (r *ResidentRepository) List(ctx context.Context, search string, offset, limit int) ([]*models.Resident, int64, error) {
	var residents []*models.Resident
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Resident{})
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("first_name LIKE ? OR last_name LIKE ? OR id_number LIKE ?", like, like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("last_name ASC, first_name ASC").
		Offset(offset).
		Limit(limit).
		Find(&residents).Error

	return residents, total, err
}

// Delete hard deletes a resident and returns the number of rows removed
func (r *ResidentRepository) Delete(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Resident{}, id)
	return res.RowsAffected, res.Error
}

// AddressRepository handles address data access
type AddressRepository struct {
	db *gorm.DB
}

// NewAddressRepository creates a new address repository
func NewAddressRepository(db *gorm.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

// Create creates a new address
func (r *AddressRepository) Create(ctx context.Context, address *models.Address) error {
	return r.db.WithContext(ctx).Create(address).Error
}

// GetByID gets an address by ID
func (r *AddressRepository) GetByID(ctx context.Context, id uint) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).First(&address, id).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// Delete hard deletes an address
func (r *AddressRepository) Delete(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Address{}, id)
	return res.RowsAffected, res.Error
}

// ResidenceRepository handles residence data access
type ResidenceRepository struct {
	db *gorm.DB
}

// NewResidenceRepository creates a new residence repository
func NewResidenceRepository(db *gorm.DB) *ResidenceRepository {
	return &ResidenceRepository{db: db}
}

// Create creates a new residence
func (r *ResidenceRepository) Create(ctx context.Context, residence *models.Residence) error {
	return r.db.WithContext(ctx).Create(residence).Error
}

// ListByResident lists all residences of a resident, newest first, with addresses
func (r *ResidenceRepository) ListByResident(ctx context.Context, residentID uint) ([]*models.Residence, error) {
	var residences []*models.Residence
	err := r.db.WithContext(ctx).
		Preload("Address").
		Where("resident_id = ?", residentID).
		Order("move_in_date DESC, id DESC").
		Find(&residences).Error
	return residences, err
}

// Close sets the move out date of a residence
func (r *ResidenceRepository) Close(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Residence{}).
		Where("id = ?", id).
		Update("move_out_date", at).Error
}

// CountByAddress counts residences still pointing at an address
func (r *ResidenceRepository) CountByAddress(ctx context.Context, addressID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Residence{}).Where("address_id = ?", addressID).Count(&count).Error
	return count, err
}

// CountByResident counts residences of a resident
func (r *ResidenceRepository) CountByResident(ctx context.Context, residentID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Residence{}).Where("resident_id = ?", residentID).Count(&count).Error
	return count, err
}

// DeleteByResident deletes all residences of a resident
func (r *ResidenceRepository) DeleteByResident(ctx context.Context, residentID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("resident_id = ?", residentID).Delete(&models.Residence{})
	return res.RowsAffected, res.Error
}

// QualificationRepository handles qualification data access
type QualificationRepository struct {
	db *gorm.DB
}

// NewQualificationRepository creates a new qualification repository
func NewQualificationRepository(db *gorm.DB) *QualificationRepository {
	return &QualificationRepository{db: db}
}

// Create creates a new qualification
func (r *QualificationRepository) Create(ctx context.Context, q *models.Qualification) error {
	return r.db.WithContext(ctx).Create(q).Error
}

// ListByResident lists qualifications of a resident
func (r *QualificationRepository) ListByResident(ctx context.Context, residentID uint) ([]*models.Qualification, error) {
	var qualifications []*models.Qualification
	err := r.db.WithContext(ctx).Where("resident_id = ?", residentID).Order("id ASC").Find(&qualifications).Error
	return qualifications, err
}

// CountByResident counts qualifications of a resident
func (r *QualificationRepository) CountByResident(ctx context.Context, residentID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Qualification{}).Where("resident_id = ?", residentID).Count(&count).Error
	return count, err
}

// DeleteByResident deletes all qualifications of a resident
func (r *QualificationRepository) DeleteByResident(ctx context.Context, residentID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("resident_id = ?", residentID).Delete(&models.Qualification{})
	return res.RowsAffected, res.Error
}

// DependentRepository handles dependent data access
type DependentRepository struct {
	db *gorm.DB
}

// NewDependentRepository creates a new dependent repository
func NewDependentRepository(db *gorm.DB) *DependentRepository {
	return &DependentRepository{db: db}
}

// Create creates a new dependent
func (r *DependentRepository) Create(ctx context.Context, d *models.Dependent) error {
	return r.db.WithContext(ctx).Create(d).Error
}

// ListByResident lists dependents of a resident
func (r *DependentRepository) ListByResident(ctx context.Context, residentID uint) ([]*models.Dependent, error) {
	var dependents []*models.Dependent
	err := r.db.WithContext(ctx).Where("resident_id = ?", residentID).Order("id ASC").Find(&dependents).Error
	return dependents, err
}

// CountByResident counts dependents of a resident
func (r *DependentRepository) CountByResident(ctx context.Context, residentID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Dependent{}).Where("resident_id = ?", residentID).Count(&count).Error
	return count, err
}

// DeleteByResident deletes all dependents of a resident
func (r *DependentRepository) DeleteByResident(ctx context.Context, residentID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("resident_id = ?", residentID).Delete(&models.Dependent{})
	return res.RowsAffected, res.Error
}
