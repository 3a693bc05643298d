package main

import (
	"database/sql"

	"github.com/pressly/goose/v3"

	"github.com/trezcool/rollcall/storage/database"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	if err := database.PrepareMigrations(); err != nil {
		return err
	}
	var db *sql.DB
	if cli.db != nil {
		db = cli.db.DB
	}
	return gooseRunFunc(args[0], db, database.MigrationsDir, args[1:]...)
}
