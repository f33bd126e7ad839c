package domain

import (
	"fmt"
	"strings"
	"time"
)

// Resident is a person registered in the village
type Resident struct {
	ID          uint
	FirstName   string
	LastName    string
	IDNumber    string
	DateOfBirth *time.Time
	Phone       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FullName returns "First Last"
func (r *Resident) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// Address is a physical address; residences point at it
type Address struct {
	ID         uint
	Street     string
	Suburb     string
	Town       string
	PostalCode string
}

// Line renders the address as a single comma separated line.
// It is also the location identity fed into verification codes.
func (a *Address) Line() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, a.Suburb, a.Town, a.PostalCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Residence links a resident to an address for a period of time
type Residence struct {
	ID          uint
	ResidentID  uint
	AddressID   uint
	MoveInDate  time.Time
	MoveOutDate *time.Time
}

// IsCurrentAt reports whether the residence covers t
func (r *Residence) IsCurrentAt(t time.Time) bool {
	if r.MoveInDate.After(t) {
		return false
	}
	return r.MoveOutDate == nil || r.MoveOutDate.After(t)
}

// Qualification held by a resident
type Qualification struct {
	ID           uint
	ResidentID   uint
	Title        string
	Institution  string
	YearObtained int
}

// Dependent of a resident
type Dependent struct {
	ID           uint
	ResidentID   uint
	FirstName    string
	LastName     string
	Relationship string
	DateOfBirth  *time.Time
}

// ============================================================
// Documents
// ============================================================

// DocumentType tags the kind of issued document
type DocumentType string

const (
	DocumentTypeProofOfAddress DocumentType = "PROOF_OF_ADDRESS"
)

// SubjectKind names the entity kinds a document can be about
type SubjectKind string

const (
	SubjectKindResident SubjectKind = "RESIDENT"
)

// Subject is the entity a document was issued for. Only the variants
// declared in this package implement it.
type Subject interface {
	Kind() SubjectKind
	EntityID() uint
	isSubject()
}

// ResidentSubject is a document subject pointing at a resident
type ResidentSubject struct {
	ResidentID uint
}

func (s ResidentSubject) Kind() SubjectKind { return SubjectKindResident }
func (s ResidentSubject) EntityID() uint    { return s.ResidentID }
func (ResidentSubject) isSubject()          {}

// SubjectFrom rebuilds a subject from its persisted kind and id
func SubjectFrom(kind SubjectKind, id uint) (Subject, error) {
	switch kind {
	case SubjectKindResident:
		return ResidentSubject{ResidentID: id}, nil
	default:
		return nil, fmt.Errorf("%w: unknown subject kind %q", ErrInvalidInput, kind)
	}
}

// DocumentRecord is the append-only audit entry for an issued document
type DocumentRecord struct {
	ID               string
	DocumentType     DocumentType
	ReferenceNumber  string
	GeneratedAt      time.Time
	GeneratedBy      uint
	Subject          Subject
	VerificationCode string
	ContentHash      string
	FilePath         string
}

// ProofOfAddressDocument is a document record plus the address it certified
type ProofOfAddressDocument struct {
	DocumentRecord
	AddressID uint
}

// VerificationReason explains a verification result
type VerificationReason string

const (
	ReasonAuthentic    VerificationReason = "AUTHENTIC"
	ReasonMetadataOnly VerificationReason = "METADATA_ONLY"
	ReasonNotFound     VerificationReason = "NOT_FOUND"
	ReasonTampered     VerificationReason = "TAMPERED"
	ReasonCodeMismatch VerificationReason = "CODE_MISMATCH"
)

// VerificationResult is the outcome of checking a presented document
type VerificationResult struct {
	Valid  bool
	Record *DocumentRecord
	Reason VerificationReason
}

// ============================================================
// Identity & roles
// ============================================================

// Well-known role names seeded at bootstrap
const (
	RoleAdmin    = "ADMIN"
	RoleChief    = "CHIEF"
	RoleClerk    = "CLERK"
	RoleResident = "RESIDENT"
)

// Components guarded by the security gate
const (
	ComponentDocument = "document"
	ComponentResident = "resident"
	ComponentUser     = "user"
	ComponentRole     = "role"
)

// Actions on components
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionIssue  = "issue"
	ActionVerify = "verify"
)

// User is an account that can sign in
type User struct {
	ID         uint
	Username   string
	Password   string // Hashed
	IsActive   bool
	ResidentID *uint
	CreatedAt  time.Time
}

// Role groups permissions
type Role struct {
	ID           uint
	Name         string
	Description  string
	IsSystem     bool
	IsPrivileged bool
}

// Permission is a named capability such as "document:issue"
type Permission struct {
	ID   uint
	Name string
}

// PermissionName builds the conventional "component:action" name
func PermissionName(componentID, action string) string {
	return componentID + ":" + action
}

// RoleSet is the set of role names a session holds
type RoleSet map[string]struct{}

// NewRoleSet builds a set from role names
func NewRoleSet(names ...string) RoleSet {
	set := make(RoleSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Has reports membership
func (s RoleSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the role names in no particular order
func (s RoleSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	return names
}

// Principal identifies an authenticated caller
type Principal struct {
	UserID    uint
	SessionID string
}

// IsAnonymous reports whether the principal carries no identity
func (p Principal) IsAnonymous() bool {
	return p.UserID == 0 || p.SessionID == ""
}

// Session is a logged-in user's cached authorization state
type Session struct {
	ID         string
	UserID     uint
	Username   string
	Roles      RoleSet
	Privileged bool
	ExpiresAt  time.Time
}

// ============================================================
// Rendering
// ============================================================

// ResidentSnapshot is the resident data printed on a document
type ResidentSnapshot struct {
	FullName    string
	IDNumber    string
	DateOfBirth *time.Time
}

// AddressSnapshot is the address data printed on a document
type AddressSnapshot struct {
	Street     string
	Suburb     string
	Town       string
	PostalCode string
}

// Lines returns the non-empty address lines in print order
func (a AddressSnapshot) Lines() []string {
	lines := make([]string, 0, 4)
	for _, l := range []string{a.Street, a.Suburb, a.Town, a.PostalCode} {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// RenderMeta carries the document metadata printed on an artifact
type RenderMeta struct {
	ReferenceNumber  string
	VerificationCode string
	IssuedAt         time.Time
}

// SnapshotResident copies the printable fields of r
func SnapshotResident(r *Resident) ResidentSnapshot {
	return ResidentSnapshot{
		FullName:    r.FullName(),
		IDNumber:    r.IDNumber,
		DateOfBirth: r.DateOfBirth,
	}
}

// SnapshotAddress copies the printable fields of a
func SnapshotAddress(a *Address) AddressSnapshot {
	return AddressSnapshot{
		Street:     a.Street,
		Suburb:     a.Suburb,
		Town:       a.Town,
		PostalCode: a.PostalCode,
	}
}

// ArtifactInfo describes one stored artifact file
type ArtifactInfo struct {
	Name    string
	Path    string
	ModTime time.Time
}
