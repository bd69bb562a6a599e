package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/diewo77/pharmacy-pos/validation"
	"gorm.io/gorm"
)

// ErrorKind classifies failures so the transport can pick a status code.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindNotFound       ErrorKind = "not_found"
	KindConflict       ErrorKind = "conflict"
	KindUnauthorized   ErrorKind = "unauthorized"
	KindInfrastructure ErrorKind = "infrastructure"
)

type kinded interface {
	Kind() ErrorKind
	Code() string
}

// KindOf returns the kind of err. Unclassified errors are infrastructure faults.
func KindOf(err error) ErrorKind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInfrastructure
}

// CodeOf returns the machine-readable code of err.
func CodeOf(err error) string {
	var k kinded
	if errors.As(err, &k) {
		return k.Code()
	}
	return "internal_error"
}

// ValidationError reports malformed input. Violations is keyed by field.
type ValidationError struct {
	Violations validation.Violations
	code       string
	msg        string
}

func NewValidationError(v validation.Violations) *ValidationError {
	return &ValidationError{Violations: v}
}

func (e *ValidationError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	fields := make([]string, 0, len(e.Violations))
	for f := range e.Violations {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "invalid input: " + strings.Join(fields, ", ")
}

func (e *ValidationError) Kind() ErrorKind { return KindValidation }

func (e *ValidationError) Code() string {
	if e.code != "" {
		return e.code
	}
	return "validation_failed"
}

var (
	ErrEmptyBasket = &ValidationError{code: "empty_basket", msg: "a sale needs at least one product"}

	ErrInvalidCredentials = &UnauthorizedError{msg: "invalid email or password"}
	ErrUserInactive       = &UnauthorizedError{msg: "user is inactive"}
)

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string   { return fmt.Sprintf("%s %d not found", e.Entity, e.ID) }
func (e *NotFoundError) Kind() ErrorKind { return KindNotFound }
func (e *NotFoundError) Code() string    { return e.Entity + "_not_found" }

func ProductNotFoundError(id uint) *NotFoundError { return &NotFoundError{Entity: "product", ID: id} }

func AlertNotFoundError(id uint) *NotFoundError { return &NotFoundError{Entity: "alert", ID: id} }

// InsufficientStockError is raised when a line asks for more units than remain.
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: %d available, %d requested", e.ProductName, e.Available, e.Requested)
}
func (e *InsufficientStockError) Kind() ErrorKind { return KindConflict }
func (e *InsufficientStockError) Code() string    { return "insufficient_stock" }

// ConflictError reports a uniqueness violation on Field.
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string   { return fmt.Sprintf("%s %q already exists", e.Field, e.Value) }
func (e *ConflictError) Kind() ErrorKind { return KindConflict }
func (e *ConflictError) Code() string    { return e.Field + "_already_exists" }

// UnauthorizedError reports failed authentication.
type UnauthorizedError struct{ msg string }

func (e *UnauthorizedError) Error() string   { return e.msg }
func (e *UnauthorizedError) Kind() ErrorKind { return KindUnauthorized }
func (e *UnauthorizedError) Code() string    { return "unauthorized" }

// InfrastructureError wraps a storage failure with the operation that hit it.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string   { return e.Op + ": " + e.Err.Error() }
func (e *InfrastructureError) Unwrap() error   { return e.Err }
func (e *InfrastructureError) Kind() ErrorKind { return KindInfrastructure }
func (e *InfrastructureError) Code() string    { return "internal_error" }

// wrapStore tags an unclassified error as an infrastructure failure of op.
// Classified errors pass through untouched.
func wrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var k kinded
	if errors.As(err, &k) {
		return err
	}
	return &InfrastructureError{Op: op, Err: err}
}

// isDuplicate reports a unique-constraint violation from any supported driver.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
