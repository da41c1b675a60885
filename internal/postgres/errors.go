package postgres

import (
	"errors"
	"fmt"

	"github.com/ganot/quilt-tracker/internal/repository"
	"github.com/lib/pq"
)

// SQLSTATE codes for the constraint classes the ledger relies on.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

func mapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch pqErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%s: %w: %v", op, repository.ErrConflict, err)
	case codeForeignKeyViolation:
		return fmt.Errorf("%s: %w: %v", op, repository.ErrForeignKeyViolation, err)
	case codeCheckViolation:
		return fmt.Errorf("%s: %w: %v", op, repository.ErrInvalidInput, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
