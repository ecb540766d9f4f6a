package main

import (
	"context"
	"fmt"

	sqlxstore "github.com/trezcool/vims/storage/credentials/sqlx"
	"github.com/trezcool/vims/storage/database"
)

var runMigrationsFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	db, err := cli.openDB(ctx)
	if err != nil {
		return err
	}
	return runMigrationsFunc(db, args[0], args[1:]...)
}

func (cli *commandLine) purge(ctx context.Context) error {
	db, err := cli.openDB(ctx)
	if err != nil {
		return err
	}
	n, err := sqlxstore.NewStore(db, cli.conf.Session.TTL).PurgeExpired(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d expired session(s) purged\n", n)
	return nil
}
