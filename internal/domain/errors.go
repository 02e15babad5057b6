package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrStockUnitNotFound       = errors.New("stock unit not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrOrderNotActive          = errors.New("order is not active")
)

// InsufficientStockError is returned when a reduction would drive a stock
// unit below zero. It names the short ingredient and the shortfall.
type InsufficientStockError struct {
	UnitID    int64
	UnitName  string
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %s, required %s",
		e.UnitName, e.Available.String(), e.Required.String())
}

// Shortfall is how much more stock the operation needed.
func (e *InsufficientStockError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Available)
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsBusinessError reports whether err is a rejection the caller caused and
// can act on, as opposed to an infrastructure failure.
func IsBusinessError(err error) bool {
	if err == nil {
		return false
	}
	var stockErr *InsufficientStockError
	var validationErr *ValidationError
	switch {
	case errors.As(err, &stockErr), errors.As(err, &validationErr):
		return true
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrStockUnitNotFound),
		errors.Is(err, ErrInvalidStatusTransition), errors.Is(err, ErrOrderNotActive):
		return true
	}
	return false
}
