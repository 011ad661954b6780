package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"device-strategy-service/config"
	"device-strategy-service/httputil"
	"device-strategy-service/log"
	"device-strategy-service/routes"
	"device-strategy-service/storage"
	"device-strategy-service/tracing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load(os.Args[1:])

	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not load configuration: %s\n", err)
		os.Exit(1)
	}

	// Set up zap logging component
	atom := zap.NewAtomicLevel()
	logger := zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.Lock(os.Stdout),
		atom,
	), zap.AddCaller())

	// Set Logging Level
	atom.SetLevel(log.ZapLogLevel(cfg.LoggingLevel))

	// Initialize an instance of the MemoryStrategyStore
	strategyStore := storage.NewMemoryStrategyStore(logger.With(zap.String("component", "storage.MemoryStrategyStore")))

	router := mux.NewRouter()

	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      httputil.RequestLogger(logger.With(zap.String("component", "httputil.RequestLogger")), router),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
	}
	logger.Debug("main(): Setting up web server..")

	// Initialize an instance of the StrategyEndpoint backed by the in-memory store
	strategyEndpoint := routes.StrategyEndpoint{
		StrategyStore: strategyStore,
		AdminToken:    cfg.AdminToken,
		Logger:        logger.With(zap.String("component", "routes.StrategyEndpoint")),
	}

	// Attach the router to the StrategyEndpoint
	strategyEndpoint.Attach(router)

	// Start opentracing
	closer, err := tracing.Start(logger.With(zap.String("component", "opentracing")))

	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not start tracing: %s", err)

		os.Exit(1)
	}

	defer closer.Close()

	// Gracefully shutdown the server
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Error("main(): Server Setup Error", zap.Error(err))
		}
	}()

	logger.Info("main(): Listening.",
		zap.String("addr", cfg.ListenAddr()),
		zap.String("health", "GET /health"),
		zap.String("heartbeat", "POST /api/heartbeat"),
		zap.String("admin", "POST /api/admin/devices/{device_id}/permanent-password"))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()

	srv.Shutdown(ctx)
	logger.Debug("main(): Server Shutting down")
	os.Exit(0)
}
