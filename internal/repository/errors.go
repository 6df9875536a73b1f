package repository

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a referenced food or meal does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when the input breaks a domain rule
	ErrInvalid = errors.New("invalid input")
	// ErrInUse is returned when deleting a food still referenced by a meal
	ErrInUse = fmt.Errorf("%w: referenced by a meal", ErrInvalid)
	// ErrStorage is returned when the storage engine failed
	ErrStorage = errors.New("storage failure")
)

// Outcome classifies the result of a repository operation
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	OutcomeInvalid
	OutcomeStorage
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeInvalid:
		return "invalid"
	default:
		return "storage_error"
	}
}

// Classify maps an error returned by a repository to its outcome
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrInvalid):
		return OutcomeInvalid
	default:
		return OutcomeStorage
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// fail turns any error raised while running op into a classified error.
// Domain failures pass through; storage failures are logged and wrapped in ErrStorage.
func fail(log *zap.Logger, op string, err error, fields ...zap.Field) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalid):
		log.Debug("rejected", append(fields, zap.String("op", op), zap.Error(err))...)
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		log.Debug("constraint rejected", append(fields, zap.String("op", op), zap.Error(err))...)
		return fmt.Errorf("%s: %w: %w", op, ErrInvalid, err)
	}
	log.Error("storage failure", append(fields, zap.String("op", op), zap.Error(err))...)
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
