// Package ddl renders SQL Server (T-SQL) statements for the generic ddl
// model, using [bracket] identifier quoting.
package ddl

import gddl "fwingest/internal/ddl"

// MapType maps a logical column type into a SQL Server column type.
//
//	Text    -> NVARCHAR(MAX)
//	Integer -> INT
func MapType(t gddl.Type) string {
	switch t {
	case gddl.Integer:
		return "INT"
	default:
		// NVARCHAR keeps accented survey labels intact.
		return "NVARCHAR(MAX)"
	}
}
