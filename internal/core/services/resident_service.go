package services

import (
	"context"
	"strings"
	"time"

	"village-registry/internal/adapters/persistence/models"
	"village-registry/internal/adapters/persistence/repositories"
	"village-registry/internal/core/domain"
	"village-registry/internal/pkg/metrics"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// ResidentService manages residents and their dependent records
type ResidentService struct {
	repos        *repositories.Repositories
	locker       ResidentLocker
	metrics      *metrics.Metrics
	log          *logrus.Entry
	storeTimeout time.Duration
	now          func() time.Time
}

// NewResidentService creates a new resident service
func NewResidentService(repos *repositories.Repositories, locker ResidentLocker, m *metrics.Metrics, log *logrus.Entry, storeTimeout time.Duration) *ResidentService {
	if locker == nil {
		locker = NewLocalResidentLocker()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if storeTimeout <= 0 {
		storeTimeout = DefaultStoreTimeout
	}
	return &ResidentService{
		repos:        repos,
		locker:       locker,
		metrics:      m,
		log:          log,
		storeTimeout: storeTimeout,
		now:          time.Now,
	}
}

// AddressInput represents an address in requests
type AddressInput struct {
	Street     string `json:"street"`
	Suburb     string `json:"suburb"`
	Town       string `json:"town"`
	PostalCode string `json:"postal_code"`
}

func (a *AddressInput) validate() error {
	if strings.TrimSpace(a.Street) == "" || strings.TrimSpace(a.Town) == "" {
		return errors.Wrap(domain.ErrInvalidInput, "street and town are required")
	}
	return nil
}

func (a *AddressInput) model() *models.Address {
	return &models.Address{
		Street:     strings.TrimSpace(a.Street),
		Suburb:     strings.TrimSpace(a.Suburb),
		Town:       strings.TrimSpace(a.Town),
		PostalCode: strings.TrimSpace(a.PostalCode),
	}
}

// CreateResidentInput represents resident registration input
type CreateResidentInput struct {
	FirstName   string       `json:"first_name"`
	LastName    string       `json:"last_name"`
	IDNumber    string       `json:"id_number"`
	DateOfBirth *time.Time   `json:"date_of_birth"`
	Phone       string       `json:"phone"`
	Address     AddressInput `json:"address"`
	MoveInDate  *time.Time   `json:"move_in_date"`
}

// QualificationInput represents qualification input
type QualificationInput struct {
	Title        string `json:"title"`
	Institution  string `json:"institution"`
	YearObtained int    `json:"year_obtained"`
}

// DependentInput represents dependent input
type DependentInput struct {
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Relationship string     `json:"relationship"`
	DateOfBirth  *time.Time `json:"date_of_birth"`
}

// RelocateInput represents a move to a new address
type RelocateInput struct {
	Address    AddressInput `json:"address"`
	MoveInDate *time.Time   `json:"move_in_date"`
}

// ResidentDetails is a resident with everything attached to it
type ResidentDetails struct {
	Resident       *domain.Resident
	CurrentAddress *domain.Address
	Residences     []*domain.Residence
	Qualifications []*domain.Qualification
	Dependents     []*domain.Dependent
}

// Create registers a resident at their first address
func (s *ResidentService) Create(ctx context.Context, input *CreateResidentInput) (*ResidentDetails, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.IDNumber = strings.TrimSpace(input.IDNumber)
	if input.FirstName == "" || input.LastName == "" || input.IDNumber == "" {
		return nil, errors.Wrap(domain.ErrInvalidInput, "first name, last name and id number are required")
	}
	if err := input.Address.validate(); err != nil {
		return nil, err
	}

	moveIn := s.now()
	if input.MoveInDate != nil {
		moveIn = *input.MoveInDate
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	resident := &models.Resident{
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		IDNumber:    input.IDNumber,
		DateOfBirth: input.DateOfBirth,
		Phone:       strings.TrimSpace(input.Phone),
	}
	address := input.Address.model()

	err := s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		if err := tx.Residents.Create(ctx, resident); err != nil {
			return err
		}
		if err := tx.Addresses.Create(ctx, address); err != nil {
			return err
		}
		return tx.Residences.Create(ctx, &models.Residence{
			ResidentID: resident.ID,
			AddressID:  address.ID,
			MoveInDate: moveIn,
		})
	})
	if err != nil {
		return nil, storeError(err, "create resident")
	}

	s.log.WithField("resident_id", resident.ID).Info("resident registered")

	return s.details(ctx, resident.ID)
}

// Get loads a resident with residences, qualifications and dependents
func (s *ResidentService) Get(ctx context.Context, id uint) (*ResidentDetails, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.details(ctx, id)
}

func (s *ResidentService) details(ctx context.Context, id uint) (*ResidentDetails, error) {
	resident, err := s.repos.Residents.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "load resident")
	}

	residences, err := s.repos.Residences.ListByResident(ctx, id)
	if err != nil {
		return nil, storeError(err, "load residences")
	}
	qualifications, err := s.repos.Qualifications.ListByResident(ctx, id)
	if err != nil {
		return nil, storeError(err, "load qualifications")
	}
	dependents, err := s.repos.Dependents.ListByResident(ctx, id)
	if err != nil {
		return nil, storeError(err, "load dependents")
	}

	out := &ResidentDetails{Resident: resident.ToDomain()}
	now := s.now()
	for _, r := range residences {
		residence := r.ToDomain()
		out.Residences = append(out.Residences, residence)
		if out.CurrentAddress == nil && r.Address != nil && residence.IsCurrentAt(now) {
			out.CurrentAddress = r.Address.ToDomain()
		}
	}
	for _, q := range qualifications {
		out.Qualifications = append(out.Qualifications, q.ToDomain())
	}
	for _, d := range dependents {
		out.Dependents = append(out.Dependents, d.ToDomain())
	}
	return out, nil
}

// List lists residents, optionally filtered by name or id number
func (s *ResidentService) List(ctx context.Context, search string, offset, limit int) ([]*domain.Resident, int64, error) {
	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	rows, total, err := s.repos.Residents.List(ctx, strings.TrimSpace(search), offset, limit)
	if err != nil {
		return nil, 0, storeError(err, "list residents")
	}
	residents := make([]*domain.Resident, len(rows))
	for i, r := range rows {
		residents[i] = r.ToDomain()
	}
	return residents, total, nil
}

// AddQualification records a qualification for a resident
func (s *ResidentService) AddQualification(ctx context.Context, residentID uint, input *QualificationInput) (*domain.Qualification, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, errors.Wrap(domain.ErrInvalidInput, "title is required")
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.ensureResident(ctx, residentID); err != nil {
		return nil, err
	}

	q := &models.Qualification{
		ResidentID:   residentID,
		Title:        strings.TrimSpace(input.Title),
		Institution:  strings.TrimSpace(input.Institution),
		YearObtained: input.YearObtained,
	}
	if err := s.repos.Qualifications.Create(ctx, q); err != nil {
		return nil, storeError(err, "create qualification")
	}
	return q.ToDomain(), nil
}

// AddDependent records a dependent for a resident
func (s *ResidentService) AddDependent(ctx context.Context, residentID uint, input *DependentInput) (*domain.Dependent, error) {
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return nil, errors.Wrap(domain.ErrInvalidInput, "first and last name are required")
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.ensureResident(ctx, residentID); err != nil {
		return nil, err
	}

	d := &models.Dependent{
		ResidentID:   residentID,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Relationship: strings.TrimSpace(input.Relationship),
		DateOfBirth:  input.DateOfBirth,
	}
	if err := s.repos.Dependents.Create(ctx, d); err != nil {
		return nil, storeError(err, "create dependent")
	}
	return d.ToDomain(), nil
}

// Relocate closes the resident's open residences and opens one at a new address.
// The move in date may not precede the start of an open residence.
func (s *ResidentService) Relocate(ctx context.Context, residentID uint, input *RelocateInput) (*domain.Residence, error) {
	if err := input.Address.validate(); err != nil {
		return nil, err
	}
	moveIn := s.now()
	if input.MoveInDate != nil {
		moveIn = *input.MoveInDate
	}

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	unlock, err := s.locker.Lock(ctx, residentID)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrTransientStore, "lock resident %d: %v", residentID, err)
	}
	defer unlock()

	residence := &models.Residence{ResidentID: residentID, MoveInDate: moveIn}
	err = s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		exists, err := tx.Residents.Exists(ctx, residentID)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Wrapf(domain.ErrNotFound, "resident %d", residentID)
		}

		current, err := tx.Residences.ListByResident(ctx, residentID)
		if err != nil {
			return err
		}
		// a residence cannot end before it began
		for _, r := range current {
			if r.MoveOutDate == nil && moveIn.Before(r.MoveInDate) {
				return errors.Wrapf(domain.ErrInvalidInput, "move in %s precedes current residence from %s",
					moveIn.Format(time.DateOnly), r.MoveInDate.Format(time.DateOnly))
			}
		}
		for _, r := range current {
			if r.MoveOutDate == nil {
				if err := tx.Residences.Close(ctx, r.ID, moveIn); err != nil {
					return err
				}
			}
		}

		address := input.Address.model()
		if err := tx.Addresses.Create(ctx, address); err != nil {
			return err
		}
		residence.AddressID = address.ID
		return tx.Residences.Create(ctx, residence)
	})
	if err != nil {
		return nil, storeError(err, "relocate resident")
	}

	s.log.WithFields(logrus.Fields{
		"resident_id": residentID,
		"address_id":  residence.AddressID,
	}).Info("resident relocated")
	return residence.ToDomain(), nil
}

// DeleteResident removes a resident with its qualifications, dependents and
// residences, and every address no other residence points at, in one
// transaction. Documents issued for the resident are kept.
func (s *ResidentService) DeleteResident(ctx context.Context, residentID uint) (err error) {
	ctx, span := tracer.Start(ctx, "ResidentService.DeleteResident")
	span.SetAttributes(attribute.Int64("resident.id", int64(residentID)))
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = outcomeOf(err)
		}
		s.metrics.IncResidentDeleted(outcome)
		endSpan(span, err)
	}()

	ctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	unlock, err := s.locker.Lock(ctx, residentID)
	if err != nil {
		return errors.Wrapf(domain.ErrTransientStore, "lock resident %d: %v", residentID, err)
	}
	defer unlock()

	var removed cascadeCounts
	err = s.repos.Transaction(ctx, func(tx *repositories.Repositories) error {
		c, err := cascadeDelete(ctx, tx, residentID)
		removed = c
		return err
	})
	if err != nil {
		return storeError(err, "delete resident")
	}

	s.log.WithFields(logrus.Fields{
		"resident_id":    residentID,
		"qualifications": removed.qualifications,
		"dependents":     removed.dependents,
		"residences":     removed.residences,
		"addresses":      removed.addresses,
	}).Info("resident deleted")
	return nil
}

type cascadeCounts struct {
	qualifications int64
	dependents     int64
	residences     int64
	addresses      int64
}

// cascadeDelete removes children before the parent. It must run inside a
// transaction.
func cascadeDelete(ctx context.Context, tx *repositories.Repositories, residentID uint) (cascadeCounts, error) {
	var c cascadeCounts

	exists, err := tx.Residents.Exists(ctx, residentID)
	if err != nil {
		return c, err
	}
	if !exists {
		return c, errors.Wrapf(domain.ErrNotFound, "resident %d", residentID)
	}

	residences, err := tx.Residences.ListByResident(ctx, residentID)
	if err != nil {
		return c, err
	}
	addressIDs := make([]uint, 0, len(residences))
	seen := make(map[uint]bool, len(residences))
	for _, r := range residences {
		if !seen[r.AddressID] {
			seen[r.AddressID] = true
			addressIDs = append(addressIDs, r.AddressID)
		}
	}

	if c.qualifications, err = tx.Qualifications.DeleteByResident(ctx, residentID); err != nil {
		return c, errors.Wrap(err, "delete qualifications")
	}
	if c.dependents, err = tx.Dependents.DeleteByResident(ctx, residentID); err != nil {
		return c, errors.Wrap(err, "delete dependents")
	}
	if c.residences, err = tx.Residences.DeleteByResident(ctx, residentID); err != nil {
		return c, errors.Wrap(err, "delete residences")
	}

	// Shared addresses stay
	for _, id := range addressIDs {
		refs, err := tx.Residences.CountByAddress(ctx, id)
		if err != nil {
			return c, err
		}
		if refs > 0 {
			continue
		}
		n, err := tx.Addresses.Delete(ctx, id)
		if err != nil {
			return c, errors.Wrapf(err, "delete address %d", id)
		}
		c.addresses += n
	}

	if err := tx.Users.UnlinkResident(ctx, residentID); err != nil {
		return c, errors.Wrap(err, "unlink users")
	}

	n, err := tx.Residents.Delete(ctx, residentID)
	if err != nil {
		return c, errors.Wrap(err, "delete resident")
	}
	if n == 0 {
		return c, errors.Wrapf(domain.ErrNotFound, "resident %d", residentID)
	}
	return c, nil
}

func (s *ResidentService) ensureResident(ctx context.Context, id uint) error {
	exists, err := s.repos.Residents.Exists(ctx, id)
	if err != nil {
		return storeError(err, "check resident")
	}
	if !exists {
		return errors.Wrapf(domain.ErrNotFound, "resident %d", id)
	}
	return nil
}
