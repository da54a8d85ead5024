package cmd

import (
	"log/slog"

	database "github.com/FACorreiaa/easytrip-api/app/db"
)

type MigrateCmd struct {
	Down  bool `help:"Roll back instead of applying"`
	Steps int  `default:"1" help:"Number of migrations to roll back"`
}

func (m *MigrateCmd) Run(c *Context) error {
	dbConfig, err := database.NewDatabaseConfig(&c.Config, c.Logger)
	if err != nil {
		return err
	}
	if m.Down {
		return database.RollbackMigrations(dbConfig.ConnectionURL, m.Steps, c.Logger)
	}
	if err = database.RunMigrations(dbConfig.ConnectionURL, c.Logger); err != nil {
		c.Logger.Error("Migration failed", slog.Any("error", err))
		return err
	}
	return nil
}
