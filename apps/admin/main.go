package main

import (
	"context"
	"fmt"
	"os"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/contact"
	"github.com/trezcool/madrasa/services/logger"
	"github.com/trezcool/madrasa/storage/database"
	"github.com/trezcool/madrasa/storage/database/sqlx"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %+v\n", err)
		os.Exit(1)
	}
	logger := logsvc.NewZeroLogger(os.Stderr, conf)

	// set up DB
	if err = database.CreateIfNotExist(context.Background(), conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	if err = db.Ping(); err != nil {
		logger.Fatal("pinging database", err)
	}

	// start CLI
	validate, _ := core.NewValidator()
	cli := commandLine{
		conf:       conf,
		db:         db,
		contactSvc: contact.NewService(sqlxrepos.NewContactRepository(db)),
		validate:   validate,
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
