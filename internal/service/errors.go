package service

import (
	"errors"
	"fmt"

	"go-inventory-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValidationError rejects malformed input or a uniqueness violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError names the kind of entity that was missing.
type NotFoundError struct {
	Entity string
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InsufficientStockError rejects an OUT larger than the SKU's stock.
type InsufficientStockError struct {
	SubVariantID uuid.UUID
	Available    decimal.Decimal
	Requested    decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: available %s, requested %s", e.Available, e.Requested)
}

// InvalidFilterError rejects a query parameter that could not be parsed.
type InvalidFilterError struct {
	Param string
	Value string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Param, e.Value)
}

// PersistenceError wraps a storage failure. Its cause is for logs only.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// classify turns a storage error into the service taxonomy. Errors that
// already belong to it pass through.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		ve *ValidationError
		nf *NotFoundError
		is *InsufficientStockError
		fe *InvalidFilterError
		pe *PersistenceError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &nf), errors.As(err, &is), errors.As(err, &fe), errors.As(err, &pe):
		return err
	case errors.Is(err, repository.ErrDuplicate):
		return &ValidationError{Message: "duplicate value violates a unique constraint"}
	}
	return &PersistenceError{Op: op, Err: err}
}
