package handlers

import (
	"strings"

	"github.com/amirphl/rsvp-relay/app/dto"
	businessflow "github.com/amirphl/rsvp-relay/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// AuthHandlerInterface defines the contract for authentication handlers
type AuthHandlerInterface interface {
	Login(c fiber.Ctx) error
	Refresh(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
}

// AuthHandler handles operator authentication HTTP requests
type AuthHandler struct {
	baseHandler
	authFlow businessflow.OperatorAuthFlow
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authFlow businessflow.OperatorAuthFlow) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(),
		authFlow:    authFlow,
	}
}

// Login handles operator login
// @Summary Operator Login
// @Description Authenticate an operator with username and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login credentials"
// @Success 200 {object} dto.APIResponse{data=dto.LoginResponse} "Login successful"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Failure 403 {object} dto.APIResponse "Account inactive"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/login", defaultRequestTimeout)
	defer cancel()

	result, err := h.authFlow.Login(ctx, &req, h.metadata(c))
	if err != nil {
		// Unknown user and wrong password look the same to the caller
		if businessflow.IsOperatorNotFound(err) || businessflow.IsIncorrectPassword(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid username or password", dto.ErrorIncorrectPassword, nil)
		}
		if businessflow.IsOperatorInactive(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Operator account is inactive", dto.ErrorAccountInactive, nil)
		}

		zap.L().Error("Login failed", zap.String("username", req.Username), zap.Error(err))
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Login failed", "LOGIN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", result)
}

// Refresh exchanges a refresh token for a new token pair
// @Summary Refresh Tokens
// @Description Rotate a refresh token into a new access and refresh token pair
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.APIResponse{data=dto.LoginResponse} "Tokens refreshed"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid refresh token"
// @Failure 403 {object} dto.APIResponse "Account inactive"
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/refresh", defaultRequestTimeout)
	defer cancel()

	result, err := h.authFlow.Refresh(ctx, &req)
	if err != nil {
		if businessflow.IsOperatorInactive(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Operator account is inactive", dto.ErrorAccountInactive, nil)
		}
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid refresh token", dto.ErrorInvalidToken, nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tokens refreshed", result)
}

// Logout revokes the access token of the request and an optional refresh token
// @Summary Operator Logout
// @Description Revoke the current access token and, when given, the refresh token
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.LogoutRequest false "Refresh token to revoke"
// @Success 200 {object} dto.APIResponse "Logged out"
// @Failure 401 {object} dto.APIResponse "Invalid token"
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	var req dto.LogoutRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}

	token := strings.TrimSpace(strings.TrimPrefix(c.Get("Authorization"), "Bearer "))
	ctx, cancel := h.createRequestContext(c, "/api/v1/auth/logout", defaultRequestTimeout)
	defer cancel()

	if err := h.authFlow.Logout(ctx, token, &req); err != nil {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid token", dto.ErrorInvalidToken, nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Logged out", nil)
}
