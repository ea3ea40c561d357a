package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/salesrepo/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// writeKind уточняет, какой операцией вызвано нарушение внешнего ключа.
type writeKind int

const (
	writeInsert writeKind = iota
	writeDelete
)

// mapWriteError переводит нарушения ограничений PostgreSQL в domain.ConstraintError.
// Прочие ошибки возвращаются без изменений.
func mapWriteError(err error, kind writeKind) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		return &domain.ConstraintError{Constraint: pgErr.ConstraintName, Kind: domain.ConstraintUnique, Err: err}
	case pgForeignKeyViolation:
		constraintKind := domain.ConstraintForeignKey
		if kind == writeDelete {
			constraintKind = domain.ConstraintRestrict
		}
		return &domain.ConstraintError{Constraint: pgErr.ConstraintName, Kind: constraintKind, Err: err}
	default:
		return err
	}
}
