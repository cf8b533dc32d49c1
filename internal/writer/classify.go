package writer

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/marketfeed/internal/database"
)

// Classify maps an error from the pool or a query to a PersistError.
// Errors without a SQLSTATE (timeouts, pgconn.Timeout, net.Error, pool
// acquisition) are Transient. An unrecognized SQLSTATE class is Fatal.
func Classify(err error) *PersistError {
	var pe *PersistError
	if errors.As(err, &pe) {
		return pe
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &PersistError{Kind: classifyCode(pgErr.Code), Err: err}
	}

	if errors.Is(err, ErrUnsupportedEvent) || errors.Is(err, database.ErrKlineOpen) {
		return &PersistError{Kind: Fatal, Err: err}
	}

	// Timeouts, cancellation, dial and socket errors. Anything else without a
	// SQLSTATE is treated the same way.
	return &PersistError{Kind: Transient, Err: err}
}

func classifyCode(code string) ErrorKind {
	switch {
	case pgerrcode.IsConnectionException(code),
		pgerrcode.IsTransactionRollback(code),
		pgerrcode.IsInsufficientResources(code),
		pgerrcode.IsOperatorIntervention(code):
		return Transient
	case pgerrcode.IsIntegrityConstraintViolation(code),
		pgerrcode.IsDataException(code):
		return Constraint
	default:
		return Fatal
	}
}

// isDuplicate reports a unique violation. With ON CONFLICT DO NOTHING the
// store should never raise one for the key itself, but a racing replica or a
// second unique index can.
func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
