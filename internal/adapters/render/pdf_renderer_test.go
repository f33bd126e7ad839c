package render

import (
	"bytes"
	"context"
	"testing"
	"time"

	"village-registry/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var johnDoe = domain.ResidentSnapshot{FullName: "John Doe", IDNumber: "1234567890123"}

var (
	testAddress = domain.AddressSnapshot{
		Street:     "123 Test Street",
		Suburb:     "Test Suburb",
		Town:       "Test Town",
		PostalCode: "1234",
	}
	testMeta = domain.RenderMeta{
		ReferenceNumber:  "POA-20240101-ABCDEF123456",
		VerificationCode: "ABCD-EFGH-IJKL-MNOP",
		IssuedAt:         time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
)

func TestRender_ContainsPrintedFields(t *testing.T) {
	data, err := NewPDFRenderer("").Render(context.Background(), johnDoe, testAddress, testMeta)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	for _, want := range []string{
		DocumentTitle,
		"John Doe",
		"1234567890123",
		"123 Test Street",
		"Test Town",
		testMeta.ReferenceNumber,
		testMeta.VerificationCode,
		"2024-01-01",
	} {
		assert.Contains(t, string(data), want)
	}
}

func TestRender_Deterministic(t *testing.T) {
	r := NewPDFRenderer("")
	first, err := r.Render(context.Background(), johnDoe, testAddress, testMeta)
	require.NoError(t, err)
	second, err := r.Render(context.Background(), johnDoe, testAddress, testMeta)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRender_MissingFields(t *testing.T) {
	r := NewPDFRenderer("")

	_, err := r.Render(context.Background(), domain.ResidentSnapshot{FullName: "John Doe"}, testAddress, testMeta)
	assert.ErrorIs(t, err, domain.ErrRender)

	_, err = r.Render(context.Background(), johnDoe, domain.AddressSnapshot{}, testMeta)
	assert.ErrorIs(t, err, domain.ErrRender)

	_, err = r.Render(context.Background(), johnDoe, testAddress, domain.RenderMeta{})
	assert.ErrorIs(t, err, domain.ErrRender)
}
