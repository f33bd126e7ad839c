package handlers

import (
	"fmt"
	"io"
	"strings"

	"village-registry/internal/adapters/http/middleware"
	"village-registry/internal/core/services"
	"village-registry/internal/pkg/pagination"
	"village-registry/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Headers carrying the issued document's identity when the PDF is streamed
const (
	HeaderReferenceNumber  = "X-Reference-Number"
	HeaderVerificationCode = "X-Verification-Code"
)

// DocumentHandler handles document issuance and verification endpoints
type DocumentHandler struct {
	documents *services.ProtectedDocuments
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documents *services.ProtectedDocuments) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// IssueRequest represents an issuance request body
type IssueRequest struct {
	ResidentID uint `json:"resident_id"`
}

// IssuedDocumentResponse is the JSON form of a freshly issued document
type IssuedDocumentResponse struct {
	Document *DocumentResponse `json:"document"`
	Content  []byte            `json:"content"`
}

// VerifyRequest represents a verification request body. Content is the
// base64 encoded document as presented; omit it to check only that the
// reference exists. An empty string is an empty document.
type VerifyRequest struct {
	ReferenceNumber string `json:"reference_number"`
	Content         []byte `json:"content"`
}

// VerifyCodeRequest represents a verification code check
type VerifyCodeRequest struct {
	ReferenceNumber  string `json:"reference_number"`
	VerificationCode string `json:"verification_code"`
}

// IssueProofOfAddress issues a proof of address for a resident's current address
// @Summary Issue proof of address
// @Description Returns the PDF when Accept is application/pdf, otherwise JSON with base64 content
// @Tags Documents
// @Accept json
// @Produce json,application/pdf
// @Security BearerAuth
// @Param body body IssueRequest true "Resident"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /documents/proof-of-address [post]
func (h *DocumentHandler) IssueProofOfAddress(c *fiber.Ctx) error {
	var req IssueRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.ResidentID == 0 {
		return response.BadRequest(c, "resident_id is required")
	}

	issued, err := h.documents.IssueProofOfAddress(c.UserContext(), middleware.PrincipalFrom(c), req.ResidentID)
	if err != nil {
		return response.FromError(c, err)
	}

	doc := issued.Document
	if wantsPDF(c) {
		c.Set(HeaderReferenceNumber, doc.ReferenceNumber)
		c.Set(HeaderVerificationCode, doc.VerificationCode)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.pdf"`, doc.ReferenceNumber))
		c.Type("pdf")
		return c.Status(fiber.StatusCreated).Send(issued.Bytes)
	}

	return response.Created(c, "Document issued successfully", &IssuedDocumentResponse{
		Document: toProofOfAddressResponse(doc),
		Content:  issued.Bytes,
	})
}

// Verify checks a presented document against the audit trail
// @Summary Verify document
// @Description Accepts JSON or multipart form data with a reference_number field and a document file
// @Tags Documents
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param body body VerifyRequest false "Reference and base64 content"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /documents/verify [post]
func (h *DocumentHandler) Verify(c *fiber.Ctx) error {
	var req VerifyRequest
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		req.ReferenceNumber = c.FormValue("reference_number")
		if fh, err := c.FormFile("document"); err == nil {
			f, err := fh.Open()
			if err != nil {
				return response.BadRequest(c, "Invalid document upload")
			}
			req.Content, err = io.ReadAll(f)
			f.Close()
			if err != nil {
				return response.BadRequest(c, "Invalid document upload")
			}
			// an uploaded file is compared even when it is empty
			if req.Content == nil {
				req.Content = []byte{}
			}
		}
	} else if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.documents.Verify(c.UserContext(), middleware.PrincipalFrom(c), req.ReferenceNumber, req.Content)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Verification completed", toVerificationResponse(result))
}

// VerifyCode checks a verification code printed on a document
// @Summary Verify code
// @Tags Documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body VerifyCodeRequest true "Reference and code"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /documents/verify-code [post]
func (h *DocumentHandler) VerifyCode(c *fiber.Ctx) error {
	var req VerifyCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.documents.VerifyCode(c.UserContext(), middleware.PrincipalFrom(c), req.ReferenceNumber, req.VerificationCode)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Verification completed", toVerificationResponse(result))
}

// GetDocument returns a document record by reference number
// @Summary Get document
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param reference path string true "Reference number"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /documents/{reference} [get]
func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	doc, err := h.documents.GetByReference(c.UserContext(), middleware.PrincipalFrom(c), c.Params("reference"))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Document retrieved successfully", toProofOfAddressResponse(doc))
}

// ListResidentDocuments lists documents issued for a resident, newest first
// @Summary List resident documents
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Resident ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Router /residents/{id}/documents [get]
func (h *DocumentHandler) ListResidentDocuments(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid resident ID")
	}
	params, err := pagination.Parse(c)
	if err != nil {
		return response.BadRequest(c, "Invalid pagination parameters")
	}

	records, total, err := h.documents.ListForResident(c.UserContext(), middleware.PrincipalFrom(c), id, params.Offset(), params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}

	items := make([]*DocumentResponse, 0, len(records))
	for _, r := range records {
		items = append(items, toDocumentResponse(r))
	}

	return response.Success(c, "Documents retrieved successfully", pagination.NewPage(items, params, total))
}

func wantsPDF(c *fiber.Ctx) bool {
	return c.Accepts(fiber.MIMEApplicationJSON, "application/pdf") == "application/pdf"
}
