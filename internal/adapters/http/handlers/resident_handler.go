package handlers

import (
	"strconv"
	"strings"

	"village-registry/internal/adapters/http/middleware"
	"village-registry/internal/core/services"
	"village-registry/internal/pkg/pagination"
	"village-registry/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ResidentHandler handles resident registry endpoints
type ResidentHandler struct {
	residents *services.ProtectedResidents
}

// NewResidentHandler creates a new resident handler
func NewResidentHandler(residents *services.ProtectedResidents) *ResidentHandler {
	return &ResidentHandler{residents: residents}
}

// CreateResident registers a resident at their first address
// @Summary Register resident
// @Tags Residents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateResidentInput true "Resident data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /residents [post]
func (h *ResidentHandler) CreateResident(c *fiber.Ctx) error {
	var req services.CreateResidentInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	details, err := h.residents.Create(c.UserContext(), middleware.PrincipalFrom(c), &req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, "Resident registered successfully", toResidentDetailsResponse(details))
}

// ListResidents lists residents
// @Summary List residents
// @Tags Residents
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name or ID number"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /residents [get]
func (h *ResidentHandler) ListResidents(c *fiber.Ctx) error {
	params, err := pagination.Parse(c)
	if err != nil {
		return response.BadRequest(c, "Invalid pagination parameters")
	}
	search := strings.TrimSpace(c.Query("search"))

	residents, total, err := h.residents.List(c.UserContext(), middleware.PrincipalFrom(c), search, params.Offset(), params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}

	items := make([]*ResidentResponse, 0, len(residents))
	for _, r := range residents {
		items = append(items, toResidentResponse(r))
	}

	return response.Success(c, "Residents retrieved successfully", pagination.NewPage(items, params, total))
}

// GetResident returns a resident with addresses, qualifications and dependents
// @Summary Get resident
// @Tags Residents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Resident ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /residents/{id} [get]
func (h *ResidentHandler) GetResident(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid resident ID")
	}

	details, err := h.residents.Get(c.UserContext(), middleware.PrincipalFrom(c), id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Resident retrieved successfully", toResidentDetailsResponse(details))
}

// AddQualification records a qualification
// @Summary Add qualification
// @Tags Residents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Resident ID"
// @Param body body services.QualificationInput true "Qualification"
// @Success 201 {object} response.Response
// @Router /residents/{id}/qualifications [post]
func (h *ResidentHandler) AddQualification(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid resident ID")
	}

	var req services.QualificationInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	q, err := h.residents.AddQualification(c.UserContext(), middleware.PrincipalFrom(c), id, &req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, "Qualification added successfully", toQualificationResponse(q))
}

// AddDependent records a dependent
// @Summary Add dependent
// @Tags Residents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Resident ID"
// @Param body body services.DependentInput true "Dependent"
// @Success 201 {object} response.Response
// @Router /residents/{id}/dependents [post]
func (h *ResidentHandler) AddDependent(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid resident ID")
	}

	var req services.DependentInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	d, err := h.residents.AddDependent(c.UserContext(), middleware.PrincipalFrom(c), id, &req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, "Dependent added successfully", toDependentResponse(d))
}

// Relocate moves a resident to a new address
// @Summary Relocate resident
// @Tags Residents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Resident ID"
// @Param body body services.RelocateInput true "New address"
// @Success 200 {object} response.Response
// @Router /residents/{id}/address [put]
func (h *ResidentHandler) Relocate(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid resident ID")
	}

	var req services.RelocateInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	residence, err := h.residents.Relocate(c.UserContext(), middleware.PrincipalFrom(c), id, &req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Resident relocated successfully", toResidenceResponse(residence))
}

// DeleteResident removes a resident and everything that depends on them.
// Issued documents stay in the audit trail.
// @Summary Delete resident
// @Tags Residents
// @Produce json
// @Security BearerAuth
// @Param id path int true "Resident ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /residents/{id} [delete]
func (h *ResidentHandler) DeleteResident(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid resident ID")
	}

	if err := h.residents.DeleteResident(c.UserContext(), middleware.PrincipalFrom(c), id); err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Resident deleted successfully", nil)
}

func parseID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.ErrBadRequest
	}
	return uint(id), nil
}
