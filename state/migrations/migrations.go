package migrations

import (
	_ "embed"

	"github.com/Ankitjha21/zksync-era/db"
	"github.com/Ankitjha21/zksync-era/db/types"
)

//go:embed state0001.sql
var mig001 string

func RunMigrations(dbPath string) error {
	migrations := []types.Migration{
		{
			ID:  "state0001",
			SQL: mig001,
		},
	}

	return db.RunMigrations(dbPath, migrations)
}
