package handlers

import (
	"errors"
	"strings"
	"time"

	"village-registry/internal/adapters/http/middleware"
	"village-registry/internal/config"
	"village-registry/internal/core/domain"
	"village-registry/internal/core/services"
	"village-registry/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
	cfg         *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cfg:         cfg,
	}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles user login
// @Summary Login user
// @Description Authenticate user, open a session and return an access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Login credentials"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	// Validate required fields
	if strings.TrimSpace(req.Username) == "" {
		return response.BadRequest(c, "Username is required")
	}
	if req.Password == "" {
		return response.BadRequest(c, "Password is required")
	}

	result, err := h.authService.Login(c.UserContext(), &services.LoginInput{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			return response.Unauthorized(c, "Invalid username or password")
		case errors.Is(err, domain.ErrUserInactive):
			return response.Forbidden(c, "User account is inactive")
		default:
			return response.FromError(c, err)
		}
	}

	h.setAuthCookie(c, result.AccessToken, result.ExpiresAt)

	return response.Success(c, "Login successful", result)
}

// Logout handles user logout
// @Summary Logout user
// @Description End the current session
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.authService.Logout(c.UserContext(), middleware.PrincipalFrom(c)); err != nil {
		return response.Unauthorized(c, "Unauthorized")
	}

	h.clearAuthCookie(c)

	return response.Success(c, "Logged out successfully", nil)
}

// Me returns the current user info
// @Summary Get current user
// @Description Get the currently authenticated user's information
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.authService.Me(c.UserContext(), middleware.PrincipalFrom(c))
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return response.Unauthorized(c, "Unauthorized")
		}
		return response.FromError(c, err)
	}

	return response.Success(c, "User retrieved successfully", fiber.Map{
		"user": user,
	})
}

// setAuthCookie sets the access token cookie
func (h *AuthHandler) setAuthCookie(c *fiber.Ctx, accessToken string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		Expires:  expiresAt,
		Secure:   h.cfg.IsProd(),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// clearAuthCookie clears the access token cookie
func (h *AuthHandler) clearAuthCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Now().Add(-1 * time.Hour),
		Secure:   h.cfg.IsProd(),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
