package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/vims/core"
	"github.com/trezcool/vims/core/route"
	"github.com/trezcool/vims/services/apiclient"
	logsvc "github.com/trezcool/vims/services/logger"
	"github.com/trezcool/vims/storage/database"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(false)

	pool, err := apiclient.NewPool(apiclient.ConfigFrom(conf), nil, nil, 1)
	if err != nil {
		logger.Fatal("setting up API client", err)
	}

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	var db *sql.DB
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	// start CLI
	cli := commandLine{
		conf:     conf,
		logger:   logger,
		out:      os.Stdout,
		pool:     pool,
		table:    route.Default,
		validate: validate,
		openDB: func(ctx context.Context) (*sql.DB, error) {
			if db != nil {
				return db, nil
			}
			var err error
			db, err = database.Open(ctx, conf)
			return db, err
		},
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}
