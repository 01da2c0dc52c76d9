package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainvault/internal/api/handlers/admin"
	"chainvault/internal/api/handlers/notifications"
	"chainvault/internal/api/handlers/transactions"
	"chainvault/internal/api/handlers/wallet"
	"chainvault/internal/api/handlers/ws"
	"chainvault/internal/api/routers"
	"chainvault/internal/config"
	"chainvault/internal/realtime"
	"chainvault/internal/repositories"
	"chainvault/internal/repositories/sqlconnect"
	"chainvault/internal/services/addresses"
	"chainvault/internal/services/catalog"
	"chainvault/internal/services/events"
	"chainvault/internal/services/fees"
	"chainvault/internal/services/ledger"
	notify "chainvault/internal/services/notifications"
	"chainvault/internal/services/pricing"
	"chainvault/internal/services/scheduler"
	"chainvault/internal/services/settlement"
	"chainvault/internal/services/swaps"
	"chainvault/internal/services/txlog"
	"chainvault/internal/tracing"
	"chainvault/pkg/cron"
	"chainvault/pkg/utils"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		utils.Logger.WithError(err).Warn("failed to read .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		utils.Logger.Fatal("invalid configuration: ", err)
	}
	utils.InitLogger(utils.LogOptions{Env: cfg.Env, Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: "chainvault",
		Environment: cfg.Env,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
	})
	if err != nil {
		utils.Logger.Fatal("tracing setup failed: ", err)
	}

	db, dialect, err := sqlconnect.Connect(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		utils.Logger.Fatal("DB connection failed: ", err)
	}
	store := repositories.NewStore(db, dialect)
	defer store.Close()

	cat := catalog.Default()
	if cfg.TokenCatalogPath != "" {
		if cat, err = catalog.Load(cfg.TokenCatalogPath); err != nil {
			utils.Logger.Fatal("failed to load token catalog: ", err)
		}
	}

	var prices pricing.Source = pricing.DefaultStatic()
	if cfg.PriceAPIURL != "" {
		prices = pricing.NewHTTPSource(cfg.PriceAPIURL, cfg.PriceRPS)
	}

	var feeOpts []fees.Option
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			utils.Logger.WithError(err).Warn("redis unreachable, fee overrides are read from the database only")
		} else {
			feeOpts = append(feeOpts, fees.WithCache(fees.NewRedisCache(rdb, 0)))
		}
		cancel()
	}

	var sinks []events.Sink
	if len(cfg.KafkaBrokers) > 0 {
		sink := events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer sink.Close()
		sinks = append(sinks, sink)
	}

	registry := realtime.NewRegistry()
	publisher := events.NewPublisher(registry, sinks...)
	sched := scheduler.New()
	l := ledger.New(store)
	log := txlog.New(store, txlog.WithFamilies(cat.Family))
	book := addresses.NewBook(store, cat.Family)
	dispatcher := notify.NewDispatcher(store, time.Now)
	resolver := fees.NewResolver(store, feeOpts...)

	engine := settlement.New(settlement.Deps{
		Store: store, Ledger: l, TxLog: log, Addresses: book, Catalog: cat,
		Fees: resolver, Notifier: dispatcher, Publisher: publisher, Scheduler: sched,
	}, settlement.WithConfirmDelay(cfg.ConfirmDelay))
	swapSvc := swaps.New(swaps.Deps{
		Store: store, Ledger: l, TxLog: log, Addresses: book, Catalog: cat,
		Prices: prices, Notifier: dispatcher, Publisher: publisher, Scheduler: sched,
	}, swaps.WithSettleDelay(cfg.ConfirmDelay))

	router := routers.MainRouter(routers.Handlers{
		Wallet:        wallet.NewHandler(engine, swapSvc),
		Transactions:  transactions.NewHandler(engine),
		Notifications: notifications.NewHandler(engine, dispatcher),
		Admin:         admin.NewHandler(engine, resolver, swapSvc),
		Realtime:      ws.NewHandler(registry, cfg.HeartbeatInterval, cfg.CORSOrigins),
	}, routers.Options{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
	})

	server := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		utils.Logger.WithField("addr", cfg.ServerPort).Info("Server is running")
		var err error
		if cfg.CertFile != "" && cfg.KeyFile != "" {
			err = server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		if err := sched.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		registry.Heartbeat(gctx, cfg.HeartbeatInterval)
		return nil
	})
	g.Go(func() error {
		c := cron.StartCronJob(gctx, cron.NewSweeper(engine, swapSvc, cfg.ConfirmSweepAfter, time.Now))
		<-gctx.Done()
		<-c.Stop().Done()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		registry.CloseAll()
		err := server.Shutdown(shutdownCtx)
		if terr := shutdownTracing(shutdownCtx); terr != nil {
			utils.Logger.WithError(terr).Warn("failed to flush traces")
		}
		return err
	})

	if err := g.Wait(); err != nil {
		utils.Logger.WithError(err).Error("server stopped with error")
		return
	}
	utils.Logger.Info("server stopped")
}
