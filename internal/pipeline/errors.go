package pipeline

import (
	"errors"

	"monfill/internal/impute"
)

// ErrCancelled is returned when an interactive confirmation is declined.
// It is not a data error and callers should not report it as a fault.
var ErrCancelled = errors.New("operation cancelled by user")

// IntegrityError reports a non-finite value after imputation; it aborts the run
// before anything is written.
type IntegrityError = impute.IntegrityError

// Confirmer answers yes/no questions raised during processing.
type Confirmer interface {
	Confirm(question string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(question string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(question string) bool {
	return f(question)
}

// AlwaysConfirm accepts every question.
var AlwaysConfirm = ConfirmFunc(func(string) bool { return true })

// NeverConfirm declines every question.
var NeverConfirm = ConfirmFunc(func(string) bool { return false })
