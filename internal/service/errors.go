package service

import (
	"errors"
	"fmt"

	"github.com/Eursukkul/booking-microservice/sublet-service/internal/gateway"
	"gorm.io/gorm"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrAuthorization        = errors.New("caller is not allowed to act on this reservation")
	ErrNotFound             = errors.New("not found")
	ErrAlreadyCancelled     = errors.New("reservation is already cancelled")
	ErrDatesUnavailable     = errors.New("dates are not available")
	ErrPaymentDeclined      = errors.New("payment declined")
	ErrPaymentStateConflict = errors.New("payment is not in a state that allows this action")
	ErrGatewayTransient     = errors.New("payment gateway temporarily unavailable")
	ErrInvalidTransition    = errors.New("reservation cannot make this transition")
	ErrAlreadyReviewed      = errors.New("review already submitted")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return err
}

// gatewayError translates gateway errors into the service taxonomy. The
// original error stays in the chain.
func gatewayError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gateway.ErrDeclined):
		return fmt.Errorf("%w: %w", ErrPaymentDeclined, err)
	case errors.Is(err, gateway.ErrStateConflict):
		return fmt.Errorf("%w: %w", ErrPaymentStateConflict, err)
	case errors.Is(err, gateway.ErrTransient):
		return fmt.Errorf("%w: %w", ErrGatewayTransient, err)
	case errors.Is(err, gateway.ErrUnknownRef):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return err
}

func isStateConflict(err error) bool { return errors.Is(err, gateway.ErrStateConflict) }

func isTransient(err error) bool { return errors.Is(err, gateway.ErrTransient) }
