// Package main is the entry point for the mei2perf API server
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/james-see/mei2perf/internal/config"
	"github.com/james-see/mei2perf/internal/logging"
	"github.com/james-see/mei2perf/pkg/api"
)

var version = "dev"

func main() {
	cfg := config.Load()

	port := flag.Int("port", cfg.Port, "Server port")
	flag.Parse()
	cfg.Port = *port

	logging.InitLogger(logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			Release:          "mei2perf@" + version,
			Debug:            !cfg.IsProduction(),
			AttachStacktrace: true,
			SampleRate:       1.0,
		})
		if err != nil {
			logging.Error("sentry initialization failed", "error", err)
		} else {
			logging.Info("sentry initialized", "environment", cfg.Environment)
		}
	}
	defer sentry.Flush(2 * time.Second)

	fmt.Printf("Starting mei2perf API server on port %d...\n", cfg.Port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", cfg.Port)

	if err := api.StartServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
}
