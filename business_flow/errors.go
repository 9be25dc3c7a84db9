// Package businessflow contains the use cases of the RSVP relay: conversations, admin commands, bulk sends and management
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Event-related errors
	ErrEventNotFound      = errors.New("event not found")
	ErrInvalidEventWindow = errors.New("event must end after it starts")
	ErrEventNameRequired  = errors.New("event name is required")

	// Instance-related errors
	ErrInstanceBound = errors.New("instance already bound to event")

	// Contact-related errors
	ErrContactNotFound      = errors.New("contact not found")
	ErrContactAlreadyExists = errors.New("contact already exists with the same name or number")
	ErrInvalidNumber        = errors.New("invalid number")
	ErrInvalidAllocation    = errors.New("invalid invites allocation")

	// Bulk send errors
	ErrBulkJobNotFound    = errors.New("bulk job not found")
	ErrNoBulkTargets      = errors.New("no recipients matched the bulk request")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrBulkTemplateEmpty  = errors.New("message or media is required")

	// Operator errors
	ErrOperatorNotFound  = errors.New("operator not found")
	ErrOperatorInactive  = errors.New("operator is inactive")
	ErrIncorrectPassword = errors.New("incorrect password")

	// Filter errors
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsEventNotFound(err error) bool {
	return errors.Is(err, ErrEventNotFound)
}

func IsInvalidEventWindow(err error) bool {
	return errors.Is(err, ErrInvalidEventWindow)
}

func IsEventNameRequired(err error) bool {
	return errors.Is(err, ErrEventNameRequired)
}

func IsInstanceBound(err error) bool {
	return errors.Is(err, ErrInstanceBound)
}

func IsContactNotFound(err error) bool {
	return errors.Is(err, ErrContactNotFound)
}

func IsContactAlreadyExists(err error) bool {
	return errors.Is(err, ErrContactAlreadyExists)
}

func IsInvalidNumber(err error) bool {
	return errors.Is(err, ErrInvalidNumber)
}

func IsInvalidAllocation(err error) bool {
	return errors.Is(err, ErrInvalidAllocation)
}

func IsBulkJobNotFound(err error) bool {
	return errors.Is(err, ErrBulkJobNotFound)
}

func IsNoBulkTargets(err error) bool {
	return errors.Is(err, ErrNoBulkTargets)
}

func IsInvalidMessageType(err error) bool {
	return errors.Is(err, ErrInvalidMessageType)
}

func IsBulkTemplateEmpty(err error) bool {
	return errors.Is(err, ErrBulkTemplateEmpty)
}

func IsOperatorNotFound(err error) bool {
	return errors.Is(err, ErrOperatorNotFound)
}

func IsOperatorInactive(err error) bool {
	return errors.Is(err, ErrOperatorInactive)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
