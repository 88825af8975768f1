package errors

import (
	"context"
	stderrs "errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes mapped below
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgNotNullViolation     = "23502"
	pgCheckViolation       = "23514"
	pgStringTruncation     = "22001"
	pgInvalidText          = "22P02"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgReadOnlyTx           = "25006"
	pgCannotConnectNow     = "57P03"
)

var pgCodes = map[string]ErrorCode{
	pgUniqueViolation:      ErrorCodeDuplicateKey,
	pgForeignKeyViolation:  ErrorCodeInvalidArgument,
	pgStringTruncation:     ErrorCodeInvalidArgument,
	pgInvalidText:          ErrorCodeInvalidArgument,
	pgNotNullViolation:     ErrorCodeValidation,
	pgCheckViolation:       ErrorCodeValidation,
	pgReadOnlyTx:           ErrorCodeUnavailable,
	pgCannotConnectNow:     ErrorCodeUnavailable,
	pgSerializationFailure: ErrorCodeDB,
	pgDeadlockDetected:     ErrorCodeDB,
	pgLockNotAvailable:     ErrorCodeDB,
}

func pgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	ok := stderrs.As(err, &pe)
	return pe, ok
}

// FromPostgres wraps err with the code its SQLSTATE maps to, DB otherwise. nil stays nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	code := ErrorCodeDB
	if pe, ok := pgError(err); ok {
		if c, ok := pgCodes[pe.Code]; ok {
			code = c
		}
	}
	return Wrap(err, code, msg)
}

// FromPostgresWithField is FromPostgres plus the offending column: the PgError
// column name, or else the constraint name minus its table prefix and kind suffix
func FromPostgresWithField(err error, msg string) error {
	out := FromPostgres(err, msg)
	pe, ok := pgError(err)
	if !ok {
		return out
	}
	if col := strings.TrimSpace(pe.ColumnName); col != "" {
		return WithField(out, col)
	}
	c := strings.TrimSpace(pe.ConstraintName)
	if pe.TableName != "" {
		c = strings.TrimPrefix(c, pe.TableName+"_")
	}
	for _, kind := range []string{"_pkey", "_fkey", "_key", "_check"} {
		if strings.HasSuffix(c, kind) {
			c = strings.TrimSuffix(c, kind)
			break
		}
	}
	if c == "" || c == pe.ConstraintName || strings.HasSuffix(pe.ConstraintName, "_pkey") {
		return out
	}
	return WithField(out, c)
}

// pgRetryable reports server side contention. Local cancellation is never retryable
func pgRetryable(err error) bool {
	if stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pe, ok := pgError(err); ok {
		switch pe.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgCannotConnectNow:
			return true
		}
		return false
	}
	s := strings.ToLower(err.Error())
	for _, m := range []string{
		"commit unexpectedly resulted in rollback",
		"deadlock detected",
		"could not serialize access",
		"canceling statement due to lock timeout",
	} {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
