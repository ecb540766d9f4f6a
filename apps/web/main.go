package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoweb "github.com/trezcool/vims/apps/web/echo"
	"github.com/trezcool/vims/core"
	"github.com/trezcool/vims/core/auth"
	"github.com/trezcool/vims/core/session"
	appfs "github.com/trezcool/vims/fs"
	"github.com/trezcool/vims/services/apiclient"
	emailsvc "github.com/trezcool/vims/services/email"
	logsvc "github.com/trezcool/vims/services/logger"
	"github.com/trezcool/vims/services/metrics"
	inmemstore "github.com/trezcool/vims/storage/credentials/inmem"
	redisstore "github.com/trezcool/vims/storage/credentials/redis"
	sqlxstore "github.com/trezcool/vims/storage/credentials/sqlx"
	"github.com/trezcool/vims/storage/database"
)

const purgeInterval = time.Hour

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "WEB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	storeLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "STORE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	storeLogger.Enable(!conf.Debug)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// set up the credentials store
	store, closeStore, err := setUpStore(ctx, conf, storeLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up %s session store: %v", conf.Session.Store, err), err)
	}
	defer func() {
		if err = closeStore(); err != nil {
			storeLogger.Error("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	m := metrics.New()
	pool, err := apiclient.NewPool(apiclient.ConfigFrom(conf), nil, m, conf.Session.MaxActive)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up API clients: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	core.ParseEmailTemplates(appfs.FS, "templates/email", conf.Debug, logger)

	sessions := session.NewProvider(store, pool, validate, logger, conf.Session.ProfileStaleTime, conf.Session.MaxActive)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("session_store").Set(conf.Session.Store)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Web Service

	server, err := echoweb.NewServer(
		echoweb.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Sessions:   sessions,
			MailSvc:    mailSvc,
			Metrics:    m,
			Validate:   validate,
			Translator: translator,
		},
	)
	if err != nil {
		logger.Fatal("creating web server", err)
	}

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

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpStore returns the configured credentials store and how to release it.
func setUpStore(ctx context.Context, conf *core.Config, logger core.Logger) (auth.Store, func() error, error) {
	noop := func() error { return nil }

	switch conf.Session.Store {
	case core.SessionStoreRedis:
		client, err := redisstore.Connect(ctx, conf.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		return redisstore.NewStore(client, conf.Session.TTL), client.Close, nil

	case core.SessionStorePostgres:
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, noop, err
		}
		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, noop, err
		}
		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		store := sqlxstore.NewStore(db, conf.Session.TTL)
		go purgeExpired(ctx, store, logger)
		return store, db.Close, nil

	case core.SessionStoreMemory, "":
		if !conf.Debug {
			logger.Warn("sessions are kept in memory: they are lost on restart and not shared between instances")
		}
		return inmemstore.NewStore(conf.Session.TTL), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown session store %q", conf.Session.Store)
}

type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// purgeExpired periodically deletes the credentials whose tokens have all expired.
func purgeExpired(ctx context.Context, store purger, logger core.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				logger.Error("purging expired credentials", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired credentials", map[string]interface{}{"count": n})
			}
		}
	}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
