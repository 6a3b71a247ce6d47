package services

import (
	"errors"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/models"
)

var (
	ErrEventNotFound         = errors.New("event not found")
	ErrApplicationNotFound   = errors.New("application not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrParticipationNotFound = errors.New("participation not found")

	ErrValidationFailed  = errors.New("validation failed")
	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidStatus     = models.ErrInvalidStatus
	ErrInvalidTransition = models.ErrInvalidTransition
	ErrCapacityExceeded  = models.ErrCapacityExceeded

	ErrParticipationConflict = errors.New("a participation already exists for this event")

	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
)
