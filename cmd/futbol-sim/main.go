package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/poio911/futbol-app-pwa-sub004/internal/simulate"
)

// Default configuration constants.
const (
	defaultGroups  = 1
	defaultPlayers = 10
	defaultFormat  = "5v5"
	defaultWorkers = 4
	defaultTimeout = 30 * time.Second
	defaultRunTime = 5 * time.Minute
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		groups    = flag.Int("groups", defaultGroups, "Number of groups simulated in parallel")
		players   = flag.Int("players", defaultPlayers, "Players registered per group")
		format    = flag.String("format", defaultFormat, "Match format, e.g. 5v5")
		workers   = flag.Int("workers", defaultWorkers, "Concurrent requests per group")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		jwtSecret = flag.String("jwt-secret", "", "Sign identity tokens with this secret instead of sending identity headers")
		seed      = flag.Int64("seed", 0, "Random seed (0 uses the clock)")
		logFile   = flag.String("log", "", "Also write logs to this file")
		verbose   = flag.Bool("verbose", false, "Log every request")
	)
	flag.Usage = func() {
		os.Stderr.WriteString(simulate.Usage + "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	closeLog, err := simulate.SetupLogging(*logFile, *verbose)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTime)
	defer cancel()

	_, err = simulate.Run(ctx, &simulate.Config{
		BaseURL:         *baseURL,
		Groups:          *groups,
		PlayersPerGroup: *players,
		Format:          *format,
		Workers:         *workers,
		Timeout:         *timeout,
		JWTSecret:       *jwtSecret,
		Seed:            *seed,
		Verbose:         *verbose,
	})
	return err
}
