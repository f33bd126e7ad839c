package repositories

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Repositories bundles every repository bound to the same *gorm.DB, so a
// transaction can hand all of them to a callback at once
type Repositories struct {
	db *gorm.DB

	Residents      *ResidentRepository
	Addresses      *AddressRepository
	Residences     *ResidenceRepository
	Qualifications *QualificationRepository
	Dependents     *DependentRepository
	Documents      *DocumentRepository
	Users          UserRepository
	Roles          RoleRepository
}

// New creates repositories on db
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:             db,
		Residents:      NewResidentRepository(db),
		Addresses:      NewAddressRepository(db),
		Residences:     NewResidenceRepository(db),
		Qualifications: NewQualificationRepository(db),
		Dependents:     NewDependentRepository(db),
		Documents:      NewDocumentRepository(db),
		Users:          NewUserRepository(db),
		Roles:          NewRoleRepository(db),
	}
}

// Transaction runs fn with repositories bound to one database transaction.
// Returning an error from fn rolls everything back.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// IsNotFound reports whether err means the row does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports whether err is a unique constraint violation
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Dialects without TranslateError support
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}
