// Package stores persists workbook snapshots and recalculation history
// in SQLite. Schema changes are embedded migrations applied with
// golang-migrate; connections run in WAL mode with foreign keys on.
package stores
