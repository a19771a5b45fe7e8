package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/term"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/chat"
	"github.com/trezcool/madrasa/services/logger"
	"github.com/trezcool/madrasa/services/msgstore"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %+v\n", err)
		os.Exit(1)
	}
	if err = conf.Client.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid client config: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.NewZeroLogger(os.Stderr, conf)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	loc := conf.Client.Location()
	session := chat.NewSession(chat.Options{
		UserID:   conf.Client.UserID,
		Store:    msgstore.New(conf.Client),
		Logger:   logger,
		Location: loc,
	})

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	r := newREPL(session, os.Stdout, loc, interactive)
	if interactive {
		r.printUsage()
	}
	if err = r.run(ctx, os.Stdin); err != nil {
		logger.Error("reading input", err)
		os.Exit(1)
	}
}
