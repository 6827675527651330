package types

// Migration is a database migration identified by ID. The SQL contains the
// `-- +migrate Up` / `-- +migrate Down` sections consumed by sql-migrate.
type Migration struct {
	ID  string
	SQL string
}
