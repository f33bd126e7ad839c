package handlers

import (
	"time"

	"village-registry/internal/core/domain"
	"village-registry/internal/core/services"
)

// ============================================================
// Registry
// ============================================================

// AddressResponse represents an address
type AddressResponse struct {
	ID         uint   `json:"id"`
	Street     string `json:"street"`
	Suburb     string `json:"suburb,omitempty"`
	Town       string `json:"town"`
	PostalCode string `json:"postal_code,omitempty"`
}

func toAddressResponse(a *domain.Address) *AddressResponse {
	if a == nil {
		return nil
	}
	return &AddressResponse{
		ID:         a.ID,
		Street:     a.Street,
		Suburb:     a.Suburb,
		Town:       a.Town,
		PostalCode: a.PostalCode,
	}
}

// ResidentResponse represents a resident
type ResidentResponse struct {
	ID          uint       `json:"id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	IDNumber    string     `json:"id_number"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toResidentResponse(r *domain.Resident) *ResidentResponse {
	return &ResidentResponse{
		ID:          r.ID,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		IDNumber:    r.IDNumber,
		DateOfBirth: r.DateOfBirth,
		Phone:       r.Phone,
		CreatedAt:   r.CreatedAt,
	}
}

// ResidenceResponse represents a residence period
type ResidenceResponse struct {
	ID          uint       `json:"id"`
	AddressID   uint       `json:"address_id"`
	MoveInDate  time.Time  `json:"move_in_date"`
	MoveOutDate *time.Time `json:"move_out_date,omitempty"`
}

func toResidenceResponse(r *domain.Residence) *ResidenceResponse {
	return &ResidenceResponse{
		ID:          r.ID,
		AddressID:   r.AddressID,
		MoveInDate:  r.MoveInDate,
		MoveOutDate: r.MoveOutDate,
	}
}

// QualificationResponse represents a qualification
type QualificationResponse struct {
	ID           uint   `json:"id"`
	Title        string `json:"title"`
	Institution  string `json:"institution,omitempty"`
	YearObtained int    `json:"year_obtained,omitempty"`
}

func toQualificationResponse(q *domain.Qualification) *QualificationResponse {
	return &QualificationResponse{
		ID:           q.ID,
		Title:        q.Title,
		Institution:  q.Institution,
		YearObtained: q.YearObtained,
	}
}

// DependentResponse represents a dependent
type DependentResponse struct {
	ID           uint       `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Relationship string     `json:"relationship"`
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
}

func toDependentResponse(d *domain.Dependent) *DependentResponse {
	return &DependentResponse{
		ID:           d.ID,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Relationship: d.Relationship,
		DateOfBirth:  d.DateOfBirth,
	}
}

// ResidentDetailsResponse represents a resident with everything attached
type ResidentDetailsResponse struct {
	*ResidentResponse
	CurrentAddress *AddressResponse         `json:"current_address"`
	Residences     []*ResidenceResponse     `json:"residences"`
	Qualifications []*QualificationResponse `json:"qualifications"`
	Dependents     []*DependentResponse     `json:"dependents"`
}

func toResidentDetailsResponse(d *services.ResidentDetails) *ResidentDetailsResponse {
	out := &ResidentDetailsResponse{
		ResidentResponse: toResidentResponse(d.Resident),
		CurrentAddress:   toAddressResponse(d.CurrentAddress),
		Residences:       make([]*ResidenceResponse, 0, len(d.Residences)),
		Qualifications:   make([]*QualificationResponse, 0, len(d.Qualifications)),
		Dependents:       make([]*DependentResponse, 0, len(d.Dependents)),
	}
	for _, r := range d.Residences {
		out.Residences = append(out.Residences, toResidenceResponse(r))
	}
	for _, q := range d.Qualifications {
		out.Qualifications = append(out.Qualifications, toQualificationResponse(q))
	}
	for _, dep := range d.Dependents {
		out.Dependents = append(out.Dependents, toDependentResponse(dep))
	}
	return out
}

// ============================================================
// Documents
// ============================================================

// DocumentResponse represents an issued document record
type DocumentResponse struct {
	ID               string    `json:"id"`
	DocumentType     string    `json:"document_type"`
	ReferenceNumber  string    `json:"reference_number"`
	GeneratedAt      time.Time `json:"generated_at"`
	GeneratedBy      uint      `json:"generated_by"`
	SubjectType      string    `json:"subject_type"`
	SubjectID        uint      `json:"subject_id"`
	VerificationCode string    `json:"verification_code"`
	ContentHash      string    `json:"content_hash,omitempty"`
	HasArtifact      bool      `json:"has_artifact"`
	AddressID        uint      `json:"address_id,omitempty"`
}

func toDocumentResponse(r *domain.DocumentRecord) *DocumentResponse {
	out := &DocumentResponse{
		ID:               r.ID,
		DocumentType:     string(r.DocumentType),
		ReferenceNumber:  r.ReferenceNumber,
		GeneratedAt:      r.GeneratedAt,
		GeneratedBy:      r.GeneratedBy,
		VerificationCode: r.VerificationCode,
		ContentHash:      r.ContentHash,
		HasArtifact:      r.FilePath != "",
	}
	if r.Subject != nil {
		out.SubjectType = string(r.Subject.Kind())
		out.SubjectID = r.Subject.EntityID()
	}
	return out
}

func toProofOfAddressResponse(d *domain.ProofOfAddressDocument) *DocumentResponse {
	out := toDocumentResponse(&d.DocumentRecord)
	out.AddressID = d.AddressID
	return out
}

// VerificationResponse represents a verification outcome
type VerificationResponse struct {
	Valid    bool              `json:"valid"`
	Reason   string            `json:"reason"`
	Document *DocumentResponse `json:"document,omitempty"`
}

func toVerificationResponse(r *domain.VerificationResult) *VerificationResponse {
	out := &VerificationResponse{
		Valid:  r.Valid,
		Reason: string(r.Reason),
	}
	if r.Record != nil {
		out.Document = toDocumentResponse(r.Record)
	}
	return out
}

// ============================================================
// Roles
// ============================================================

// RoleResponse represents a role
type RoleResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	IsSystem     bool   `json:"is_system"`
	IsPrivileged bool   `json:"is_privileged"`
}

func toRoleResponse(r *domain.Role) *RoleResponse {
	return &RoleResponse{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		IsSystem:     r.IsSystem,
		IsPrivileged: r.IsPrivileged,
	}
}
