package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres SQLSTATEs the back office reacts to.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// ErrorDump is the log-friendly breakdown of an error chain.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	if pg, ok := postgresError(err); ok {
		d.PGCode = pg.code
		d.PGConstraint = pg.constraint
		d.PGTable = pg.table
		d.PGColumn = pg.column
		d.PGDetail = pg.detail
		d.PGMessage = pg.message
	}
	return d
}

// FromDB classifies a raw persistence error. Typed errors pass through;
// constraint violations from Postgres (pgx or lib/pq) or sqlite become
// CONFLICT (unique), VALIDATION_ERROR (foreign key) or STATE_CONFLICT
// (check); anything else is a DEPENDENCY_ERROR.
func FromDB(err error, message string) error {
	if err == nil {
		return nil
	}
	if As(err) != nil {
		return err
	}
	code := CodeDependency
	pg, isPG := postgresError(err)
	switch {
	case isPG && pg.code == pgUniqueViolation, sqliteViolation(err, "UNIQUE"):
		code = CodeConflict
	case isPG && pg.code == pgForeignKeyViolation, sqliteViolation(err, "FOREIGN KEY"):
		code = CodeValidation
	case isPG && pg.code == pgCheckViolation, sqliteViolation(err, "CHECK"):
		code = CodeStateConflict
	}
	return Wrap(code, err, message)
}

type pgFields struct {
	code, constraint, table, column, detail, message string
}

func postgresError(err error) (pgFields, bool) {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return pgFields{pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message}, true
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return pgFields{string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message}, true
	}
	return pgFields{}, false
}

// sqliteViolation matches the "<KIND> constraint failed" text of the sqlite
// driver, which exposes no typed error through gorm.
func sqliteViolation(err error, kind string) bool {
	return strings.Contains(err.Error(), kind+" constraint failed")
}
