package handlers

import (
	"strings"

	"village-registry/internal/core/services"
	"village-registry/internal/pkg/pagination"
	"village-registry/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles user and role management endpoints
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// AssignRoleRequest represents assign role request body
type AssignRoleRequest struct {
	Role string `json:"role"`
}

// CreateUser handles creating an account
// @Summary Create user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateUserInput true "User data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /users [post]
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var req services.CreateUserInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	user, err := h.userService.CreateUser(c.UserContext(), &req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, "User created successfully", fiber.Map{
		"user": user,
	})
}

// ListUsers handles listing all users
// @Summary List all users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /users [get]
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	params, err := pagination.Parse(c)
	if err != nil {
		return response.BadRequest(c, "Invalid pagination parameters")
	}

	result, err := h.userService.ListUsers(c.UserContext(), params.Offset(), params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Users retrieved successfully", pagination.NewPage(result.Users, params, result.Total))
}

// AssignRole gives a role to a user. The user's open sessions end.
// @Summary Assign role
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param body body AssignRoleRequest true "Role name"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /users/{id}/roles [post]
func (h *UserHandler) AssignRole(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}

	var req AssignRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Role) == "" {
		return response.BadRequest(c, "Role is required")
	}

	if err := h.userService.AssignRole(c.UserContext(), id, req.Role); err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Role assigned successfully", nil)
}

// RevokeRole removes a role from a user. The user's open sessions end.
// @Summary Revoke role
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param role path string true "Role name"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/{id}/roles/{role} [delete]
func (h *UserHandler) RevokeRole(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid user ID")
	}

	if err := h.userService.RevokeRole(c.UserContext(), id, c.Params("role")); err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Role revoked successfully", nil)
}

// ListRoles lists every role
// @Summary List roles
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /roles [get]
func (h *UserHandler) ListRoles(c *fiber.Ctx) error {
	roles, err := h.userService.ListRoles(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}

	items := make([]*RoleResponse, 0, len(roles))
	for _, r := range roles {
		items = append(items, toRoleResponse(r))
	}

	return response.Success(c, "Roles retrieved successfully", items)
}

// DeleteRole deletes a non-system role
// @Summary Delete role
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Param id path int true "Role ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /roles/{id} [delete]
func (h *UserHandler) DeleteRole(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid role ID")
	}

	if err := h.userService.DeleteRole(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Role deleted successfully", nil)
}
