package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"village-registry/internal/adapters/persistence/models"
	"village-registry/internal/adapters/persistence/repositories"
	"village-registry/internal/adapters/render"
	"village-registry/internal/core/domain"
	"village-registry/internal/pkg/logger"
	"village-registry/internal/pkg/metrics"
	"village-registry/internal/pkg/testdb"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	repos   *repositories.Repositories
	metrics *metrics.Metrics
	locker  *LocalResidentLocker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.New(t)
	return &fixture{
		db:      db,
		repos:   repositories.New(db),
		metrics: metrics.New(prometheus.NewRegistry()),
		locker:  NewLocalResidentLocker(),
	}
}

func (f *fixture) documentService(codes CodeGenerator, renderer Renderer, opts DocumentOptions) *DocumentService {
	if codes == nil {
		codes = NewReferenceGenerator()
	}
	if renderer == nil {
		renderer = render.NewPDFRenderer("")
	}
	opts.Metrics = f.metrics
	opts.Logger = logger.Discard()
	return NewDocumentService(f.repos, codes, renderer, f.locker, opts)
}

func (f *fixture) residentService() *ResidentService {
	return NewResidentService(f.repos, f.locker, f.metrics, logger.Discard(), 0)
}

type seededResident struct {
	resident  *models.Resident
	address   *models.Address
	residence *models.Residence
}

// seedJohnDoe registers John Doe at 123 Test Street since yesterday
func (f *fixture) seedJohnDoe(t *testing.T) *seededResident {
	return f.seedResident(t, "John", "Doe", "1234567890123", &models.Address{
		Street:     "123 Test Street",
		Suburb:     "Test Suburb",
		Town:       "Test Town",
		PostalCode: "1234",
	})
}

func (f *fixture) seedResident(t *testing.T, first, last, idNumber string, address *models.Address) *seededResident {
	t.Helper()
	ctx := context.Background()

	resident := &models.Resident{FirstName: first, LastName: last, IDNumber: idNumber}
	require.NoError(t, f.repos.Residents.Create(ctx, resident))

	if address.ID == 0 {
		require.NoError(t, f.repos.Addresses.Create(ctx, address))
	}
	residence := &models.Residence{
		ResidentID: resident.ID,
		AddressID:  address.ID,
		MoveInDate: time.Now().Add(-24 * time.Hour),
	}
	require.NoError(t, f.repos.Residences.Create(ctx, residence))

	return &seededResident{resident: resident, address: address, residence: residence}
}

func (f *fixture) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

// sequenceCodes hands out references from a fixed list, repeating the last one
type sequenceCodes struct {
	mu   sync.Mutex
	refs []string
	gen  *ReferenceGenerator
}

func newSequenceCodes(refs ...string) *sequenceCodes {
	return &sequenceCodes{refs: refs, gen: NewReferenceGenerator()}
}

func (s *sequenceCodes) GenerateReferenceNumber() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := s.refs[0]
	if len(s.refs) > 1 {
		s.refs = s.refs[1:]
	}
	return ref
}

func (s *sequenceCodes) GenerateVerificationCode(subject, location, reference string) string {
	return s.gen.GenerateVerificationCode(subject, location, reference)
}

// renderFunc adapts a function to Renderer
type renderFunc func(ctx context.Context, resident domain.ResidentSnapshot, address domain.AddressSnapshot, meta domain.RenderMeta) ([]byte, error)

func (f renderFunc) Render(ctx context.Context, resident domain.ResidentSnapshot, address domain.AddressSnapshot, meta domain.RenderMeta) ([]byte, error) {
	return f(ctx, resident, address, meta)
}
