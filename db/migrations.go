package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/Ankitjha21/zksync-era/db/types"
	"github.com/Ankitjha21/zksync-era/log"
	migrate "github.com/rubenv/sql-migrate"
)

const (
	upDownSeparator = "-- +migrate Down"
)

// RunMigrations opens the DB in dbPath and applies the given migrations up.
func RunMigrations(dbPath string, migrations []types.Migration) error {
	db, err := NewSQLiteDB(dbPath)
	if err != nil {
		return fmt.Errorf("error creating DB %w", err)
	}
	defer db.Close()
	return RunMigrationsDB(log.GetDefaultLogger(), db, migrations)
}

// RunMigrationsDB applies the given migrations up on an already open DB.
func RunMigrationsDB(logger *log.Logger, db *sql.DB, migrations []types.Migration) error {
	migs := &migrate.MemoryMigrationSource{Migrations: []*migrate.Migration{}}
	for _, m := range migrations {
		mig, err := splitMigration(m)
		if err != nil {
			return err
		}
		migs.Migrations = append(migs.Migrations, mig)
	}

	logger.Debugf("running migrations: %+v", migs)
	nMigrations, err := migrate.Exec(db, "sqlite3", migs, migrate.Up)
	if err != nil {
		return fmt.Errorf("error executing migration %w", err)
	}

	logger.Infof("successfully ran %d migrations", nMigrations)
	return nil
}

func splitMigration(m types.Migration) (*migrate.Migration, error) {
	parts := strings.Split(m.SQL, upDownSeparator)
	if len(parts) != 2 {
		return nil, fmt.Errorf("migration %s should have exactly one %q separator", m.ID, upDownSeparator)
	}
	up := strings.TrimPrefix(strings.TrimSpace(parts[0]), "-- +migrate Up")
	down := strings.TrimSpace(parts[1])
	return &migrate.Migration{
		Id:   m.ID,
		Up:   []string{up},
		Down: []string{down},
	}, nil
}
