package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseTarget(t *testing.T, target string) (Query, error) {
	t.Helper()
	var (
		q   Query
		err error
	)
	app := fiber.New()
	app.Get("/residents", func(c *fiber.Ctx) error {
		q, err = Parse(c)
		return nil
	})
	_, testErr := app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, testErr)
	return q, err
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		want    Query
		wantErr bool
	}{
		{name: "defaults", target: "/residents", want: Query{Page: 1, Limit: DefaultLimit}},
		{name: "explicit", target: "/residents?page=3&limit=10", want: Query{Page: 3, Limit: 10}},
		{name: "capped", target: "/residents?limit=1000", want: Query{Page: 1, Limit: MaxLimit}},
		{name: "zero page", target: "/residents?page=0", wantErr: true},
		{name: "negative limit", target: "/residents?limit=-5", wantErr: true},
		{name: "not a number", target: "/residents?page=two", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := parseTarget(t, tt.target)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidQuery)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, q)
		})
	}
}

func TestNewPage(t *testing.T) {
	q := Query{Page: 2, Limit: 20}
	assert.Equal(t, 20, q.Offset())

	page := NewPage([]string{"a", "b"}, q, 41)
	assert.Equal(t, Meta{Page: 2, Limit: 20, Total: 41, TotalPages: 3, HasNext: true, HasPrev: true}, page.Meta)
	assert.Equal(t, []string{"a", "b"}, page.Data)

	empty := NewPage[string](nil, Query{Page: 1, Limit: 20}, 0)
	assert.NotNil(t, empty.Data)
	assert.Zero(t, empty.Meta.TotalPages)
	assert.False(t, empty.Meta.HasNext)
}
