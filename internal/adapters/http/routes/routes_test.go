package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"village-registry/internal/adapters/http/handlers"
	"village-registry/internal/adapters/http/middleware"
	"village-registry/internal/adapters/http/routes"
	"village-registry/internal/adapters/persistence/repositories"
	"village-registry/internal/adapters/render"
	"village-registry/internal/config"
	"village-registry/internal/core/domain"
	"village-registry/internal/core/services"
	"village-registry/internal/pkg/logger"
	"village-registry/internal/pkg/metrics"
	"village-registry/internal/pkg/testdb"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newApp(t *testing.T) *fiber.App {
	t.Helper()

	db := testdb.New(t)
	seeder := config.NewSeeder(db, config.BootstrapConfig{AdminUsername: "admin", AdminPassword: "admin-password"}, logger.Discard()).
		WithHashCost(bcrypt.MinCost)
	require.NoError(t, seeder.Run(context.Background()))

	cfg := &config.Config{
		AppMode: "dev",
		JWT:     config.JWTConfig{Secret: "test-secret", AccessTokenMins: 60},
	}
	m := metrics.New(prometheus.NewRegistry())
	repos := repositories.New(db)
	locker := services.NewLocalResidentLocker()
	sessions := services.NewSessionStore(time.Hour)
	gate := services.NewSecurityGate(sessions, repos.Roles, m, logger.Discard())

	docs := services.NewDocumentService(repos, services.NewReferenceGenerator(), render.NewPDFRenderer("Test Registry"), locker,
		services.DocumentOptions{Metrics: m, Logger: logger.Discard()})
	residents := services.NewResidentService(repos, locker, m, logger.Discard(), 0)

	app := fiber.New(fiber.Config{ErrorHandler: middleware.CustomErrorHandler})
	routes.Setup(app, &routes.Dependencies{
		DB:        db,
		Config:    cfg,
		Auth:      services.NewAuthService(repos.Users, repos.Roles, sessions, cfg, logger.Discard()),
		Users:     services.NewUserService(repos.Users, repos.Roles, sessions, logger.Discard()),
		Gate:      gate,
		Residents: services.NewProtectedResidents(gate, residents),
		Documents: services.NewProtectedDocuments(gate, docs),
	})
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func jsonRequest(method, target, token string, body interface{}) *http.Request {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func decode(t *testing.T, resp *http.Response, data interface{}) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func login(t *testing.T, app *fiber.App, username, password string) string {
	t.Helper()
	resp := do(t, app, jsonRequest(http.MethodPost, "/api/v1/auth/login", "", fiber.Map{
		"username": username,
		"password": password,
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out services.AuthResponse
	decode(t, resp, &out)
	require.NotEmpty(t, out.AccessToken)
	return out.AccessToken
}

func createResident(t *testing.T, app *fiber.App, token string) uint {
	t.Helper()
	resp := do(t, app, jsonRequest(http.MethodPost, "/api/v1/residents", token, fiber.Map{
		"first_name":    "John",
		"last_name":     "Doe",
		"id_number":     "1234567890123",
		"date_of_birth": "1985-04-12T00:00:00Z",
		"move_in_date":  time.Now().Add(-48 * time.Hour).UTC().Format(time.RFC3339),
		"address": fiber.Map{
			"street":      "123 Test Street",
			"suburb":      "Test Suburb",
			"town":        "Test Town",
			"postal_code": "1234",
		},
	}))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out handlers.ResidentDetailsResponse
	decode(t, resp, &out)
	require.NotNil(t, out.CurrentAddress)
	return out.ID
}

func issuePDF(t *testing.T, app *fiber.App, token string, residentID uint) (pdf []byte, ref, code string) {
	t.Helper()
	req := jsonRequest(http.MethodPost, "/api/v1/documents/proof-of-address", token, fiber.Map{"resident_id": residentID})
	req.Header.Set(fiber.HeaderAccept, "application/pdf")

	resp := do(t, app, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderCacheControl), "no-store")

	defer resp.Body.Close()
	pdf, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return pdf, resp.Header.Get(handlers.HeaderReferenceNumber), resp.Header.Get(handlers.HeaderVerificationCode)
}

func verifyMultipart(t *testing.T, app *fiber.App, token, ref string, content []byte) handlers.VerificationResponse {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("reference_number", ref))
	part, err := w.CreateFormFile("document", ref+".pdf")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/verify", &body)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)

	resp := do(t, app, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out handlers.VerificationResponse
	decode(t, resp, &out)
	return out
}

func TestIssueAndVerifyOverHTTP(t *testing.T) {
	app := newApp(t)
	token := login(t, app, "admin", "admin-password")
	residentID := createResident(t, app, token)

	pdf, ref, code := issuePDF(t, app, token, residentID)
	require.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Regexp(t, `^POA-\d{8}-[0-9A-F]{12}$`, ref)
	assert.Regexp(t, `^[A-Z2-7]{4}(-[A-Z2-7]{4}){3}$`, code)

	t.Run("authentic upload", func(t *testing.T) {
		out := verifyMultipart(t, app, token, ref, pdf)
		assert.True(t, out.Valid)
		assert.Equal(t, string(domain.ReasonAuthentic), out.Reason)
		require.NotNil(t, out.Document)
		assert.Equal(t, residentID, out.Document.SubjectID)
	})

	t.Run("tampered json body", func(t *testing.T) {
		tampered := append([]byte(nil), pdf...)
		tampered[len(tampered)/2] ^= 0x01

		resp := do(t, app, jsonRequest(http.MethodPost, "/api/v1/documents/verify", token, handlers.VerifyRequest{
			ReferenceNumber: ref,
			Content:         tampered,
		}))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out handlers.VerificationResponse
		decode(t, resp, &out)
		assert.False(t, out.Valid)
		assert.Equal(t, string(domain.ReasonTampered), out.Reason)
	})

	t.Run("empty upload", func(t *testing.T) {
		out := verifyMultipart(t, app, token, ref, []byte{})
		assert.False(t, out.Valid)
		assert.Equal(t, string(domain.ReasonTampered), out.Reason)
	})

	t.Run("verification code", func(t *testing.T) {
		resp := do(t, app, jsonRequest(http.MethodPost, "/api/v1/documents/verify-code", token, handlers.VerifyCodeRequest{
			ReferenceNumber:  ref,
			VerificationCode: code,
		}))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out handlers.VerificationResponse
		decode(t, resp, &out)
		assert.True(t, out.Valid)
	})

	t.Run("unknown reference", func(t *testing.T) {
		resp := do(t, app, jsonRequest(http.MethodPost, "/api/v1/documents/verify", token, handlers.VerifyRequest{
			ReferenceNumber: "POA-20000101-000000000000",
		}))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out handlers.VerificationResponse
		decode(t, resp, &out)
		assert.False(t, out.Valid)
		assert.Equal(t, string(domain.ReasonNotFound), out.Reason)
		assert.Nil(t, out.Document)
	})

	t.Run("listed for resident", func(t *testing.T) {
		resp := do(t, app, jsonRequest(http.MethodGet, fmt.Sprintf("/api/v1/residents/%d/documents", residentID), token, nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var page struct {
			Data []handlers.DocumentResponse `json:"data"`
			Meta struct {
				Total int64 `json:"total"`
			} `json:"meta"`
		}
		decode(t, resp, &page)
		require.Len(t, page.Data, 1)
		assert.Equal(t, ref, page.Data[0].ReferenceNumber)
		assert.EqualValues(t, 1, page.Meta.Total)
	})

	t.Run("record survives resident deletion", func(t *testing.T) {
		resp := do(t, app, jsonRequest(http.MethodDelete, fmt.Sprintf("/api/v1/residents/%d", residentID), token, nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = do(t, app, jsonRequest(http.MethodGet, fmt.Sprintf("/api/v1/residents/%d", residentID), token, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()

		resp = do(t, app, jsonRequest(http.MethodGet, "/api/v1/documents/"+ref, token, nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var doc handlers.DocumentResponse
		decode(t, resp, &doc)
		assert.Equal(t, ref, doc.ReferenceNumber)

		out := verifyMultipart(t, app, token, ref, pdf)
		assert.True(t, out.Valid)
	})
}

func TestIssueAsJSON(t *testing.T) {
	app := newApp(t)
	token := login(t, app, "admin", "admin-password")
	residentID := createResident(t, app, token)

	resp := do(t, app, jsonRequest(http.MethodPost, "/api/v1/documents/proof-of-address", token, fiber.Map{"resident_id": residentID}))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out handlers.IssuedDocumentResponse
	decode(t, resp, &out)
	require.NotNil(t, out.Document)
	assert.True(t, bytes.HasPrefix(out.Content, []byte("%PDF")))
	assert.NotEmpty(t, out.Document.ContentHash)
	assert.Equal(t, string(domain.DocumentTypeProofOfAddress), out.Document.DocumentType)
}

func TestAuthorization(t *testing.T) {
	app := newApp(t)
	adminToken := login(t, app, "admin", "admin-password")
	residentID := createResident(t, app, adminToken)

	resp := do(t, app, jsonRequest(http.MethodPost, "/api/v1/users", adminToken, fiber.Map{
		"username": "jane",
		"password": "jane-password",
		"roles":    []string{domain.RoleResident},
	}))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	residentToken := login(t, app, "jane", "jane-password")

	t.Run("missing token", func(t *testing.T) {
		resp := do(t, app, jsonRequest(http.MethodPost, "/api/v1/documents/proof-of-address", "", fiber.Map{"resident_id": residentID}))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("resident role cannot issue", func(t *testing.T) {
		resp := do(t, app, jsonRequest(http.MethodPost, "/api/v1/documents/proof-of-address", residentToken, fiber.Map{"resident_id": residentID}))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		env := decode(t, resp, nil)
		assert.False(t, env.Success)
	})

	t.Run("resident role cannot manage users", func(t *testing.T) {
		resp := do(t, app, jsonRequest(http.MethodGet, "/api/v1/users", residentToken, nil))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("resident role may verify", func(t *testing.T) {
		resp := do(t, app, jsonRequest(http.MethodPost, "/api/v1/documents/verify-code", residentToken, handlers.VerifyCodeRequest{
			ReferenceNumber:  "POA-20000101-000000000000",
			VerificationCode: "AAAA-AAAA-AAAA-AAAA",
		}))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("system role cannot be deleted", func(t *testing.T) {
		resp := do(t, app, jsonRequest(http.MethodGet, "/api/v1/roles", adminToken, nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var roles []handlers.RoleResponse
		decode(t, resp, &roles)

		var adminRoleID uint
		for _, r := range roles {
			if r.Name == domain.RoleAdmin {
				adminRoleID = r.ID
			}
		}
		require.NotZero(t, adminRoleID)

		resp = do(t, app, jsonRequest(http.MethodDelete, fmt.Sprintf("/api/v1/roles/%d", adminRoleID), adminToken, nil))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("logout ends the session", func(t *testing.T) {
		resp := do(t, app, jsonRequest(http.MethodPost, "/api/v1/auth/logout", residentToken, nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = do(t, app, jsonRequest(http.MethodGet, "/api/v1/auth/me", residentToken, nil))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestInvalidInput(t *testing.T) {
	app := newApp(t)
	token := login(t, app, "admin", "admin-password")

	resp := do(t, app, jsonRequest(http.MethodPost, "/api/v1/documents/proof-of-address", token, fiber.Map{}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, app, jsonRequest(http.MethodPost, "/api/v1/documents/verify", token, handlers.VerifyRequest{}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, app, jsonRequest(http.MethodPost, "/api/v1/documents/proof-of-address", token, fiber.Map{"resident_id": 9999}))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, app, jsonRequest(http.MethodGet, "/api/v1/residents/abc", token, nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, app, jsonRequest(http.MethodGet, "/api/v1/residents?page=0", token, nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get(fiber.HeaderCacheControl))
	resp.Body.Close()
}
