package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no link matches the lookup.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateCode is returned by Create when the code is already stored.
	ErrDuplicateCode = errors.New("duplicate short code")

	// ErrVisitAlreadyRecorded is returned by RecordVisit when the visit ID
	// was committed by an earlier attempt.
	ErrVisitAlreadyRecorded = errors.New("visit already recorded")
)

const pgUniqueViolation = "23505"

// isDuplicateKey recognises a unique constraint violation from any of the
// supported drivers.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
