// Package ddl renders Postgres SQL for the generic ddl model.
package ddl

import gddl "fwingest/internal/ddl"

// MapType maps a logical column type to a Postgres SQL type.
//
//	Text    -> TEXT
//	Integer -> INTEGER
func MapType(t gddl.Type) string {
	switch t {
	case gddl.Integer:
		return "INTEGER"
	default:
		return "TEXT"
	}
}
