package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// Excluded references the proposed row of an upsert
func Excluded(column string) string {
	return fmt.Sprintf("EXCLUDED.%s", column)
}

// Upsert builds a Postgres INSERT ... ON CONFLICT (conflict) DO UPDATE that overwrites update columns
func Upsert(table string, conflict []string, update []string, cols []string, values ...any) (string, []any) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols(cols...)
	ib.Values(values...)

	assignments := make([]string, 0, len(update))
	for _, col := range update {
		assignments = append(assignments, fmt.Sprintf("%s = %s", col, Excluded(col)))
	}
	ib.SQL(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflict, ", "), strings.Join(assignments, ", ")))
	return ib.Build()
}
