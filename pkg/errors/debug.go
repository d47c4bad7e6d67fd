package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const maxChainDepth = 16

// ErrorDump is the log-only view of an error: its chain plus any driver
// diagnostics. None of it reaches API responses.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	DBCode       string `json:"db_code,omitempty"`
	DBMessage    string `json:"db_message,omitempty"`
	DBDetail     string `json:"db_detail,omitempty"`
	DBTable      string `json:"db_table,omitempty"`
	DBColumn     string `json:"db_column,omitempty"`
	DBConstraint string `json:"db_constraint,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e, depth := err, 0; e != nil && depth < maxChainDepth; e, depth = errors.Unwrap(e), depth+1 {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var (
		pgxErr  *pgconn.PgError
		pqErr   *pq.Error
		liteErr sqlite3.Error
	)
	switch {
	case errors.As(err, &pgxErr):
		d.DBCode, d.DBMessage, d.DBDetail = pgxErr.Code, pgxErr.Message, pgxErr.Detail
		d.DBTable, d.DBColumn, d.DBConstraint = pgxErr.TableName, pgxErr.ColumnName, pgxErr.ConstraintName
	case errors.As(err, &pqErr):
		d.DBCode, d.DBMessage, d.DBDetail = string(pqErr.Code), pqErr.Message, pqErr.Detail
		d.DBTable, d.DBColumn, d.DBConstraint = pqErr.Table, pqErr.Column, pqErr.Constraint
	case errors.As(err, &liteErr):
		d.DBCode = fmt.Sprintf("sqlite:%d", int(liteErr.ExtendedCode))
		d.DBMessage = liteErr.Error()
	}
	return d
}

// Fields flattens the dump for structured logging, omitting empty values.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.TopMessage}
	add := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	add("error_code", string(d.Code))
	add("db_code", d.DBCode)
	add("db_message", d.DBMessage)
	add("db_detail", d.DBDetail)
	add("db_table", d.DBTable)
	add("db_column", d.DBColumn)
	add("db_constraint", d.DBConstraint)
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	return fields
}
