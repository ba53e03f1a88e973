package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrIO                = errors.New("io failure")
	ErrTemporary         = errors.New("temporary failure")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrConversion        = errors.New("document conversion failed")
	ErrInvalidResponse   = errors.New("invalid classification response")
	ErrSubmission        = errors.New("batch submission failed")
	ErrBatchExecution    = errors.New("batch execution failed")
	ErrBatchTimeout      = errors.New("batch wait timed out")
	ErrResultParse       = errors.New("batch result parse failed")
	ErrResultIntegrity   = errors.New("batch result integrity violated")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ResultParseError pinpoints the result file line and field that failed validation.
type ResultParseError struct {
	Line  int
	Field string
	Err   error
}

func (e *ResultParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: line %d: %v", ErrResultParse, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: line %d: field %s: %v", ErrResultParse, e.Line, e.Field, e.Err)
}

func (e *ResultParseError) Unwrap() []error {
	return []error{ErrResultParse, e.Err}
}
