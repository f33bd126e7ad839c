package models

import (
	"time"

	"village-registry/internal/core/domain"

	"gorm.io/gorm"
)

// ============================================================
// Registry Tables
// ============================================================

// Resident represents residents table
type Resident struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	FirstName   string     `gorm:"size:100;not null" json:"first_name"`
	LastName    string     `gorm:"size:100;not null" json:"last_name"`
	IDNumber    string     `gorm:"size:20;uniqueIndex;not null" json:"id_number"`
	DateOfBirth *time.Time `gorm:"type:date" json:"date_of_birth"`
	Phone       string     `gorm:"size:30" json:"phone"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Resident) TableName() string {
	return "residents"
}

func (r *Resident) ToDomain() *domain.Resident {
	return &domain.Resident{
		ID:          r.ID,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		IDNumber:    r.IDNumber,
		DateOfBirth: r.DateOfBirth,
		Phone:       r.Phone,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Address represents addresses table
type Address struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Street     string    `gorm:"size:200;not null" json:"street"`
	Suburb     string    `gorm:"size:100" json:"suburb"`
	Town       string    `gorm:"size:100;not null" json:"town"`
	PostalCode string    `gorm:"size:10" json:"postal_code"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Address) TableName() string {
	return "addresses"
}

func (a *Address) ToDomain() *domain.Address {
	return &domain.Address{
		ID:         a.ID,
		Street:     a.Street,
		Suburb:     a.Suburb,
		Town:       a.Town,
		PostalCode: a.PostalCode,
	}
}

// Residence ที่อยู่อาศัย (resident N:1 address)
type Residence struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ResidentID  uint       `gorm:"not null;index" json:"resident_id"`
	AddressID   uint       `gorm:"not null;index" json:"address_id"`
	MoveInDate  time.Time  `gorm:"not null" json:"move_in_date"`
	MoveOutDate *time.Time `json:"move_out_date"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Resident *Resident `gorm:"foreignKey:ResidentID;constraint:OnDelete:RESTRICT" json:"-"`
	Address  *Address  `gorm:"foreignKey:AddressID;constraint:OnDelete:RESTRICT" json:"address,omitempty"`
}

func (Residence) TableName() string {
	return "residences"
}

func (r *Residence) ToDomain() *domain.Residence {
	return &domain.Residence{
		ID:          r.ID,
		ResidentID:  r.ResidentID,
		AddressID:   r.AddressID,
		MoveInDate:  r.MoveInDate,
		MoveOutDate: r.MoveOutDate,
	}
}

// Qualification represents qualifications table
type Qualification struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ResidentID   uint      `gorm:"not null;index" json:"resident_id"`
	Title        string    `gorm:"size:150;not null" json:"title"`
	Institution  string    `gorm:"size:150" json:"institution"`
	YearObtained int       `json:"year_obtained"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`

	Resident *Resident `gorm:"foreignKey:ResidentID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (Qualification) TableName() string {
	return "qualifications"
}

func (q *Qualification) ToDomain() *domain.Qualification {
	return &domain.Qualification{
		ID:           q.ID,
		ResidentID:   q.ResidentID,
		Title:        q.Title,
		Institution:  q.Institution,
		YearObtained: q.YearObtained,
	}
}

// Dependent represents dependents table
type Dependent struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	ResidentID   uint       `gorm:"not null;index" json:"resident_id"`
	FirstName    string     `gorm:"size:100;not null" json:"first_name"`
	LastName     string     `gorm:"size:100;not null" json:"last_name"`
	Relationship string     `gorm:"size:50" json:"relationship"`
	DateOfBirth  *time.Time `gorm:"type:date" json:"date_of_birth"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`

	Resident *Resident `gorm:"foreignKey:ResidentID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (Dependent) TableName() string {
	return "dependents"
}

func (d *Dependent) ToDomain() *domain.Dependent {
	return &domain.Dependent{
		ID:           d.ID,
		ResidentID:   d.ResidentID,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Relationship: d.Relationship,
		DateOfBirth:  d.DateOfBirth,
	}
}

// ============================================================
// Document Audit Tables (append-only)
// ============================================================

// Document represents documents table. Subjects are stored without a
// foreign key so the audit trail outlives residents and addresses.
type Document struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	DocumentType      string    `gorm:"size:32;not null;index" json:"document_type"`
	ReferenceNumber   string    `gorm:"size:40;uniqueIndex;not null" json:"reference_number"`
	GeneratedAt       time.Time `gorm:"not null" json:"generated_at"`
	GeneratedBy       uint      `gorm:"not null;index" json:"generated_by"`
	RelatedEntityType string    `gorm:"size:32;not null;index:idx_documents_related" json:"related_entity_type"`
	RelatedEntityID   uint      `gorm:"not null;index:idx_documents_related" json:"related_entity_id"`
	VerificationCode  *string   `gorm:"size:32" json:"verification_code"`
	ContentHash       *string   `gorm:"size:64" json:"-"`
	FilePath          *string   `gorm:"size:255" json:"-"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Document) TableName() string {
	return "documents"
}

// BeforeUpdate keeps the audit trail append-only
func (d *Document) BeforeUpdate(tx *gorm.DB) error {
	return domain.ErrImmutableRecord
}

// BeforeDelete keeps the audit trail append-only
func (d *Document) BeforeDelete(tx *gorm.DB) error {
	return domain.ErrImmutableRecord
}

// NewDocument maps a domain record onto the table row
func NewDocument(rec *domain.DocumentRecord) *Document {
	return &Document{
		ID:                rec.ID,
		DocumentType:      string(rec.DocumentType),
		ReferenceNumber:   rec.ReferenceNumber,
		GeneratedAt:       rec.GeneratedAt,
		GeneratedBy:       rec.GeneratedBy,
		RelatedEntityType: string(rec.Subject.Kind()),
		RelatedEntityID:   rec.Subject.EntityID(),
		VerificationCode:  optional(rec.VerificationCode),
		ContentHash:       optional(rec.ContentHash),
		FilePath:          optional(rec.FilePath),
	}
}

func (d *Document) ToDomain() (*domain.DocumentRecord, error) {
	subject, err := domain.SubjectFrom(domain.SubjectKind(d.RelatedEntityType), d.RelatedEntityID)
	if err != nil {
		return nil, err
	}
	return &domain.DocumentRecord{
		ID:               d.ID,
		DocumentType:     domain.DocumentType(d.DocumentType),
		ReferenceNumber:  d.ReferenceNumber,
		GeneratedAt:      d.GeneratedAt,
		GeneratedBy:      d.GeneratedBy,
		Subject:          subject,
		VerificationCode: deref(d.VerificationCode),
		ContentHash:      deref(d.ContentHash),
		FilePath:         deref(d.FilePath),
	}, nil
}

// ProofOfAddressDocument เอกสารรับรองที่อยู่ (1:1 กับ documents)
type ProofOfAddressDocument struct {
	DocumentID string    `gorm:"primaryKey;size:36" json:"document_id"`
	AddressID  uint      `gorm:"not null;index" json:"address_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`

	Document *Document `gorm:"foreignKey:DocumentID;constraint:OnDelete:RESTRICT" json:"document,omitempty"`
}

func (ProofOfAddressDocument) TableName() string {
	return "proof_of_address_documents"
}

// BeforeUpdate keeps the audit trail append-only
func (p *ProofOfAddressDocument) BeforeUpdate(tx *gorm.DB) error {
	return domain.ErrImmutableRecord
}

// BeforeDelete keeps the audit trail append-only
func (p *ProofOfAddressDocument) BeforeDelete(tx *gorm.DB) error {
	return domain.ErrImmutableRecord
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ============================================================
// Identity & Role Tables
// ============================================================

// User represents users table
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Password   string    `gorm:"size:255;not null" json:"-"`
	IsActive   bool      `gorm:"default:true" json:"is_active"`
	ResidentID *uint     `gorm:"index" json:"resident_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) ToDomain() *domain.User {
	return &domain.User{
		ID:         u.ID,
		Username:   u.Username,
		Password:   u.Password,
		IsActive:   u.IsActive,
		ResidentID: u.ResidentID,
		CreatedAt:  u.CreatedAt,
	}
}

// Role represents roles table
type Role struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Description  string    `gorm:"size:255" json:"description"`
	IsSystem     bool      `gorm:"default:false" json:"is_system"`
	IsPrivileged bool      `gorm:"default:false" json:"is_privileged"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Role) TableName() string {
	return "roles"
}

func (r *Role) ToDomain() *domain.Role {
	return &domain.Role{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		IsSystem:     r.IsSystem,
		IsPrivileged: r.IsPrivileged,
	}
}

// Permission represents permissions table
type Permission struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Permission) TableName() string {
	return "permissions"
}

// RolePermission represents role_permissions table
type RolePermission struct {
	RoleID       uint      `gorm:"primaryKey" json:"role_id"`
	PermissionID uint      `gorm:"primaryKey" json:"permission_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`

	Role       *Role       `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE" json:"-"`
	Permission *Permission `gorm:"foreignKey:PermissionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}

// UserRole represents user_roles table
type UserRole struct {
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	RoleID    uint      `gorm:"primaryKey" json:"role_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Role *Role `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE" json:"-"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

// ComponentPermission maps (component, action) to the permission it requires
type ComponentPermission struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ComponentID  string    `gorm:"size:50;not null;uniqueIndex:idx_component_action" json:"component_id"`
	Action       string    `gorm:"size:50;not null;uniqueIndex:idx_component_action" json:"action"`
	PermissionID uint      `gorm:"not null;index" json:"permission_id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`

	Permission *Permission `gorm:"foreignKey:PermissionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ComponentPermission) TableName() string {
	return "component_permissions"
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate runs auto migration for all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// Identity
		&User{},
		&Role{},
		&Permission{},
		&RolePermission{},
		&UserRole{},
		&ComponentPermission{},
		// Registry
		&Resident{},
		&Address{},
		&Residence{},
		&Qualification{},
		&Dependent{},
		// Documents
		&Document{},
		&ProofOfAddressDocument{},
	)
}
