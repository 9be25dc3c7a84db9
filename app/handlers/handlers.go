// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/rsvp-relay/app/dto"
	businessflow "github.com/amirphl/rsvp-relay/business_flow"
	"github.com/amirphl/rsvp-relay/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const defaultRequestTimeout = 30 * time.Second

// baseHandler carries the response helpers every handler shares
type baseHandler struct {
	validator *validator.Validate
}

func newBaseHandler() baseHandler {
	return baseHandler{validator: validator.New()}
}

func (h baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validate runs struct validation. When it reports false the 400 response
// has been written and the handler must return the accompanying error.
func (h baseHandler) validate(c fiber.Ctx, req any) (bool, error) {
	err := h.validator.Struct(req)
	if err == nil {
		return true, nil
	}
	var validationErrors []string
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		for _, fe := range fieldErrors {
			validationErrors = append(validationErrors, getValidationErrorMessage(fe))
		}
	} else {
		validationErrors = append(validationErrors, err.Error())
	}
	return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
}

// businessError writes the business error code with the given status
func (h baseHandler) businessError(c fiber.Ctx, statusCode int, err error, fallbackCode string) error {
	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		return h.ErrorResponse(c, statusCode, be.Message, be.Code, nil)
	}
	return h.ErrorResponse(c, statusCode, err.Error(), fallbackCode, nil)
}

// metadata builds the client metadata with the authenticated operator
func (h baseHandler) metadata(c fiber.Ctx) *businessflow.ClientMetadata {
	m := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	m.RequestID = c.Get("X-Request-ID")
	if id, ok := c.Locals("operator_id").(uint); ok && id != 0 {
		m.OperatorID = &id
	}
	return m
}

// createRequestContext creates a context with timeout and request-scoped values
func (h baseHandler) createRequestContext(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	if id, ok := c.Locals("operator_id").(uint); ok && id != 0 {
		ctx = context.WithValue(ctx, utils.OperatorIDKey, id)
	}
	return ctx, cancel
}

func paramUint(c fiber.Ctx, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

func queryUint(c fiber.Ctx, name string) (uint, error) {
	s := c.Query(name)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a positive number", name)
	}
	return uint(v), nil
}

func queryString(c fiber.Ctx, name string) *string {
	if s := c.Query(name); s != "" {
		return &s
	}
	return nil
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param()
	case "max":
		return err.Field() + " must be at most " + err.Param()
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "numeric":
		return err.Field() + " must contain only numbers"
	case "datetime":
		return err.Field() + " must be a date in format " + err.Param()
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
