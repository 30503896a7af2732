package dbtest

import "database/sql"

func sqlString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func sqlInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: true}
}
