package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/madrasa/apps/api/echo"
	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/contact"
	"github.com/trezcool/madrasa/core/message"
	"github.com/trezcool/madrasa/services/email"
	"github.com/trezcool/madrasa/services/logger"
	"github.com/trezcool/madrasa/storage/database"
	"github.com/trezcool/madrasa/storage/database/inmem"
	"github.com/trezcool/madrasa/storage/database/sqlx"
)

const engineInMemory = "inmem"

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %+v", err)
	}
	if err = conf.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// =========================================================================
	// Set up Dependencies

	// set up loggers
	logger := logsvc.NewRollbarLogger(logsvc.NewZeroLogger(os.Stdout, conf), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	defer logger.Close()

	// set up DB
	contactRepo, messageRepo, closeDB, err := setUpRepos(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = closeDB(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, os.Stdout, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	contactSvc := contact.NewService(contactRepo)
	messageSvc := message.NewService(messageRepo, contactSvc, mailSvc, conf, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - expvar.Handler
	// /metrics - prometheus registry

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := echoapi.NewMetrics(registry)

	debugMux := http.NewServeMux()
	debugMux.Handle("/debug/vars", expvar.Handler())
	debugMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, debugMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.Options{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		ContactSvc: contactSvc,
		MessageSvc: messageSvc,
		Metrics:    metrics,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpRepos returns the repositories of the configured database engine and a func closing it.
func setUpRepos(conf *core.Config) (contact.Repository, message.Repository, func() error, error) {
	if conf.Database.Engine == engineInMemory {
		db := inmemdb.NewDB()
		return inmemdb.NewContactRepository(db), inmemdb.NewMessageRepository(db), func() error { return nil }, nil
	}

	db, err := database.Setup(context.Background(), conf)
	if err != nil {
		return nil, nil, nil, err
	}
	return sqlxrepos.NewContactRepository(db), sqlxrepos.NewMessageRepository(db), db.Close, nil
}
