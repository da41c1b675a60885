package sqlite

import (
	"fmt"
	"strings"

	"github.com/ganot/quilt-tracker/internal/repository"
)

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isCheckViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "CHECK constraint failed")
}

// mapWriteError translates constraint failures into repository sentinels.
func mapWriteError(op string, err error) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %v", op, repository.ErrConflict, err)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%s: %w: %v", op, repository.ErrForeignKeyViolation, err)
	case isCheckViolation(err):
		return fmt.Errorf("%s: %w: %v", op, repository.ErrInvalidInput, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
