package main

import (
	"context"

	"github.com/trezcool/madrasa/storage/database"
)

var gooseRunFunc = database.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(context.Background(), args[0], cli.db, arguments...)
}
