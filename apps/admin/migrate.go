package main

import (
	"github.com/trezcool/goose"

	"github.com/trezcool/gradebook/fs"
	"github.com/trezcool/gradebook/storage/database"
)

var gooseRunFunc = goose.RunFS // mockable

// migrate runs a goose command (up, down, status..) against the embedded migrations.
func (cli *commandLine) migrate(args []string) error {
	if err := database.SetDialect(cli.engine); err != nil {
		return err
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db.DB, appfs.FS, database.MigrationsDir(cli.engine), arguments...)
}
