package services

import (
	"context"
	"testing"
	"time"

	"village-registry/internal/adapters/persistence/models"
	"village-registry/internal/core/domain"
	"village-registry/internal/pkg/testdb"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedFamily gives John Doe two qualifications, a dependent and an issued document
func seedFamily(t *testing.T, f *fixture) (*seededResident, *IssuedDocument) {
	t.Helper()
	ctx := context.Background()
	john := f.seedJohnDoe(t)
	svc := f.residentService()

	_, err := svc.AddQualification(ctx, john.resident.ID, &QualificationInput{Title: "BSc", Institution: "Test University", YearObtained: 2010})
	require.NoError(t, err)
	_, err = svc.AddQualification(ctx, john.resident.ID, &QualificationInput{Title: "MSc", Institution: "Test University", YearObtained: 2012})
	require.NoError(t, err)
	_, err = svc.AddDependent(ctx, john.resident.ID, &DependentInput{FirstName: "Jane", LastName: "Doe", Relationship: "daughter"})
	require.NoError(t, err)

	issued, err := f.documentService(nil, nil, DocumentOptions{}).IssueProofOfAddress(ctx, john.resident.ID, 1)
	require.NoError(t, err)
	return john, issued
}

func TestDeleteResident_Cascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	john, issued := seedFamily(t, f)

	var before models.Document
	require.NoError(t, f.db.Where("id = ?", issued.Document.ID).First(&before).Error)

	require.NoError(t, f.residentService().DeleteResident(ctx, john.resident.ID))

	assert.Zero(t, f.count(t, &models.Qualification{}))
	assert.Zero(t, f.count(t, &models.Dependent{}))
	assert.Zero(t, f.count(t, &models.Residence{}))
	assert.Zero(t, f.count(t, &models.Resident{}))
	assert.Zero(t, f.count(t, &models.Address{}))

	var after models.Document
	require.NoError(t, f.db.Where("related_entity_id = ?", john.resident.ID).First(&after).Error)
	assert.Equal(t, before, after)

	docs := f.documentService(nil, nil, DocumentOptions{})
	result, err := docs.Verify(ctx, issued.Document.ReferenceNumber, issued.Bytes)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ResidentsDeleted.WithLabelValues("success")))
}

func TestDeleteResident_KeepsSharedAddress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	john := f.seedJohnDoe(t)
	jane := f.seedResident(t, "Jane", "Roe", "9876543210987", john.address)

	require.NoError(t, f.residentService().DeleteResident(ctx, john.resident.ID))

	_, err := f.repos.Addresses.GetByID(ctx, john.address.ID)
	require.NoError(t, err)

	remaining, err := f.repos.Residences.ListByResident(ctx, jane.resident.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestDeleteResident_RemovesEveryPastAddress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	john := f.seedJohnDoe(t)
	svc := f.residentService()

	_, err := svc.Relocate(ctx, john.resident.ID, &RelocateInput{Address: AddressInput{Street: "1 New Road", Town: "Test Town"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.count(t, &models.Address{}))

	require.NoError(t, svc.DeleteResident(ctx, john.resident.ID))
	assert.Zero(t, f.count(t, &models.Address{}))
}

func TestDeleteResident_NotFound(t *testing.T) {
	f := newFixture(t)

	err := f.residentService().DeleteResident(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ResidentsDeleted.WithLabelValues("not_found")))
}

func TestDeleteResident_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	john, _ := seedFamily(t, f)

	testdb.FailDeletesOn(t, f.db, "residences", errors.New("disk full"))

	err := f.residentService().DeleteResident(ctx, john.resident.ID)
	require.Error(t, err)

	assert.EqualValues(t, 2, f.count(t, &models.Qualification{}))
	assert.EqualValues(t, 1, f.count(t, &models.Dependent{}))
	assert.EqualValues(t, 1, f.count(t, &models.Residence{}))
	assert.EqualValues(t, 1, f.count(t, &models.Address{}))
	assert.EqualValues(t, 1, f.count(t, &models.Resident{}))
}

func TestDeleteResident_UnlinksUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	john := f.seedJohnDoe(t)

	user := &models.User{Username: "john", Password: "x", IsActive: true, ResidentID: &john.resident.ID}
	require.NoError(t, f.repos.Users.Create(ctx, user))

	require.NoError(t, f.residentService().DeleteResident(ctx, john.resident.ID))

	reloaded, err := f.repos.Users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.ResidentID)
}

func TestDeleteResident_WaitsForIssuanceLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	john := f.seedJohnDoe(t)

	unlock, err := f.locker.Lock(ctx, john.resident.ID)
	require.NoError(t, err)
	defer unlock()

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	err = f.residentService().DeleteResident(short, john.resident.ID)
	assert.ErrorIs(t, err, domain.ErrTransientStore)
	assert.EqualValues(t, 1, f.count(t, &models.Resident{}))
}

func TestCreateResident(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := f.residentService()

	details, err := svc.Create(ctx, &CreateResidentInput{
		FirstName: "John",
		LastName:  "Doe",
		IDNumber:  "1234567890123",
		Address: AddressInput{
			Street:     "123 Test Street",
			Suburb:     "Test Suburb",
			Town:       "Test Town",
			PostalCode: "1234",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "John Doe", details.Resident.FullName())
	require.NotNil(t, details.CurrentAddress)
	assert.Equal(t, "123 Test Street, Test Suburb, Test Town, 1234", details.CurrentAddress.Line())
	assert.Len(t, details.Residences, 1)

	_, err = svc.Create(ctx, &CreateResidentInput{
		FirstName: "Other",
		LastName:  "Person",
		IDNumber:  "1234567890123",
		Address:   AddressInput{Street: "1 Road", Town: "Town"},
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateEntry)
	assert.EqualValues(t, 1, f.count(t, &models.Address{}))

	_, err = svc.Create(ctx, &CreateResidentInput{FirstName: "No", LastName: "Address", IDNumber: "1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRelocate_MovesCurrentAddress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	john := f.seedJohnDoe(t)
	svc := f.residentService()

	residence, err := svc.Relocate(ctx, john.resident.ID, &RelocateInput{
		Address: AddressInput{Street: "9 Hill Road", Town: "Other Town", PostalCode: "9999"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, john.address.ID, residence.AddressID)

	details, err := svc.Get(ctx, john.resident.ID)
	require.NoError(t, err)
	require.NotNil(t, details.CurrentAddress)
	assert.Equal(t, "9 Hill Road, Other Town, 9999", details.CurrentAddress.Line())
	assert.Len(t, details.Residences, 2)

	issued, err := f.documentService(nil, nil, DocumentOptions{}).IssueProofOfAddress(ctx, john.resident.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, residence.AddressID, issued.Document.AddressID)
	assert.Contains(t, string(issued.Bytes), "9 Hill Road")
}

func TestRelocate_RejectsMoveInBeforeCurrentResidence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	john := f.seedJohnDoe(t)
	svc := f.residentService()

	tenDaysAgo := time.Now().AddDate(0, 0, -10)
	_, err := svc.Relocate(ctx, john.resident.ID, &RelocateInput{
		Address:    AddressInput{Street: "9 Hill Road", Town: "Other Town", PostalCode: "9999"},
		MoveInDate: &tenDaysAgo,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	details, err := svc.Get(ctx, john.resident.ID)
	require.NoError(t, err)
	require.Len(t, details.Residences, 1)
	assert.Nil(t, details.Residences[0].MoveOutDate)
	require.NotNil(t, details.CurrentAddress)
	assert.Equal(t, john.address.ID, details.CurrentAddress.ID)
	assert.EqualValues(t, 1, f.count(t, &models.Address{}))
}

func TestListResidents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedJohnDoe(t)
	f.seedResident(t, "Jane", "Roe", "9876543210987", &models.Address{Street: "2 Road", Town: "Town"})
	svc := f.residentService()

	all, total, err := svc.List(ctx, "", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	found, total, err := svc.List(ctx, "Roe", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, found, 1)
	assert.Equal(t, "Jane", found[0].FirstName)
}

func TestAddQualification_UnknownResident(t *testing.T) {
	f := newFixture(t)

	_, err := f.residentService().AddQualification(context.Background(), 404, &QualificationInput{Title: "BSc"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
