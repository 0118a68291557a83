package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wellbeat/healthsync/internal/api"
	"github.com/wellbeat/healthsync/internal/config"
	"github.com/wellbeat/healthsync/internal/server"
	"github.com/wellbeat/healthsync/internal/stats"
	"github.com/wellbeat/healthsync/internal/store"
	"github.com/wellbeat/healthsync/pkg/event"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	mongoURI       string
	signingKey     string
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "", "server address")
	flag.StringVar(&mongoURI, "mongo-uri", "", "mongodb connection URI")
	flag.StringVar(&signingKey, "signing-key", "", "base64 encoded token signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := logrus.New()

	cfg, err := config.FromEnv(addr, mongoURI, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	if cfg.Environment == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	st, err := store.NewMongoStore(context.Background(), cfg.MongoURI)
	if err != nil {
		logger.Fatalf("store: %v", err)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			logger.Errorf("store close: %v", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	hub, err := server.NewHub(logger, statsUpdater)
	if err != nil {
		logger.Fatalf("new hub: %v", err)
	}

	dispatcher := server.NewDispatcher(hub, logger, statsUpdater)

	// an emergency request from a device alerts the user's other connections;
	// escalation to responders is handled by the care platform, not here
	hub.SetEmergencyHandler(func(userId string, data json.RawMessage) {
		logger.WithField("user_id", userId).Warn("emergency support requested")
		dispatcher.Publish(event.Emergency, data, userId)
	})

	app := api.NewApp(mux, logger, hub, dispatcher, st, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go hub.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Infof("received signal: %s", sig)
	case err := <-errCh:
		logger.Errorf("server: %v", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := app.Shutdown(shutDownCtx); err != nil {
		logger.Fatalf("HTTP server shutdown: %v", err)
	}

	logger.Info("shutting down hub...")
	if err := hub.Shutdown(shutDownCtx); err != nil {
		logger.Fatalf("hub shutdown: %v", err)
	}

	logger.Info("shutdown complete")
}
