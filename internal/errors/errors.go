package errors

import (
	"errors"
	"fmt"
)

// Kind is the stable, serializable category of an error.
type Kind string

const (
	KindInvalidURL              Kind = "invalid_url"
	KindURLTooLong              Kind = "url_too_long"
	KindBlockedURL              Kind = "blocked_url"
	KindInvalidShortCode        Kind = "invalid_short_code"
	KindConflict                Kind = "conflict"
	KindCodeGenerationExhausted Kind = "code_generation_exhausted"
	KindNotFound                Kind = "not_found"
	KindUnavailable             Kind = "unavailable"
	KindInternal                Kind = "internal"
)

var (
	ErrURLNotFound        = errors.New("URL not found")
	ErrShortCodeExists    = errors.New("short code already exists")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrStorageFailure     = errors.New("storage failure")
)

const CodeGenerationExhausted = "CODE_GENERATION_EXHAUSTED"

type ValidationError struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error in field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func NewValidationError(kind Kind, field, message string) *ValidationError {
	return &ValidationError{
		Kind:    kind,
		Field:   field,
		Message: message,
	}
}

// StorageError is returned by every storage backend. It unwraps to both the
// sentinel describing the failure and the backend's own error.
type StorageError struct {
	Op        string
	ShortCode string
	Err       error
	Cause     error
}

func (e *StorageError) Error() string {
	msg := "storage " + e.Op
	if e.ShortCode != "" {
		msg += " '" + e.ShortCode + "'"
	}
	msg += ": " + e.Err.Error()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StorageError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NewStorageError(op, shortCode string, sentinel, cause error) error {
	return &StorageError{
		Op:        op,
		ShortCode: shortCode,
		Err:       sentinel,
		Cause:     cause,
	}
}

type BusinessError struct {
	Code    string
	Message string
	Cause   error
}

func (e *BusinessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Cause
}

func NewBusinessError(code, message string, cause error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewCodeGenerationExhaustedError reports that every attempt collided. It
// means the code space is too small for the current row count.
func NewCodeGenerationExhaustedError(attempts int, cause error) *BusinessError {
	return NewBusinessError(
		CodeGenerationExhausted,
		fmt.Sprintf("failed to generate unique short code after %d attempts", attempts),
		cause,
	)
}

// IsValidationError проверяет является ли ошибка ошибкой валидации
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

func GetValidationError(err error) *ValidationError {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr
	}
	return nil
}

// GetBusinessError извлекает BusinessError из ошибки
func GetBusinessError(err error) *BusinessError {
	var businessErr *BusinessError
	if errors.As(err, &businessErr) {
		return businessErr
	}
	return nil
}

// KindOf classifies err. Exhaustion is checked before the storage sentinels
// because its cause is the last conflict.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if v := GetValidationError(err); v != nil {
		return v.Kind
	}
	if b := GetBusinessError(err); b != nil && b.Code == CodeGenerationExhausted {
		return KindCodeGenerationExhausted
	}
	switch {
	case errors.Is(err, ErrURLNotFound):
		return KindNotFound
	case errors.Is(err, ErrShortCodeExists):
		return KindConflict
	case errors.Is(err, ErrStorageUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}

// MessageOf returns the human readable message that goes with KindOf(err).
// Storage causes are not exposed.
func MessageOf(err error) string {
	switch KindOf(err) {
	case "":
		return ""
	case KindInvalidURL, KindURLTooLong, KindBlockedURL, KindInvalidShortCode:
		return GetValidationError(err).Message
	case KindCodeGenerationExhausted:
		return GetBusinessError(err).Message
	case KindNotFound:
		return "unknown short code"
	case KindConflict:
		return "short code already exists"
	case KindUnavailable:
		return "storage is temporarily unavailable"
	default:
		return "an unexpected error occurred"
	}
}
