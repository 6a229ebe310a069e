package apperr

import (
	"errors"
	"fmt"
)

// Error kinds shared by the pipeline and its adapters.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrUnfittedExtractor  = errors.New("feature extractor is not fitted")
	ErrUnfittedClassifier = errors.New("classifier is not fitted")
	ErrInsufficientData   = errors.New("insufficient training data")
	ErrArtifactIO         = errors.New("model artifact i/o failed")
	ErrTransientNetwork   = errors.New("transient network error")
)

// ErrArtifactNotFound reports an empty store. It matches ErrArtifactIO as well.
var ErrArtifactNotFound = fmt.Errorf("%w: artifacts not found", ErrArtifactIO)

// Error tags a cause with one of the kinds above and the operation that failed.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap builds an *Error. A nil kind defaults to the cause itself.
func Wrap(kind error, op string, err error) error {
	if kind == nil {
		if err == nil {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// New returns a kind-tagged error with a formatted message as its cause.
func New(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}
