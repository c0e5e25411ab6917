package simulate

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging initializes the global logger on stdout and, when logFile is
// set, on that file too.
func SetupLogging(logFile string, verbose bool) (func() error, error) {
	var w io.Writer = os.Stdout
	closeFn := func() error { return nil }
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closeFn = f.Close
	}
	if err := logger.InitWith(w, "text"); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closeFn, nil
}

// Usage is printed by -help.
var Usage = strings.TrimLeft(`
Futbol Simulator
================

Drives a running futbol service end to end: registers rosters, balances
teams, plays a match per group, submits peer evaluations and verifies the
OVR history that results.

Usage:
  go run ./cmd/futbol-sim [options]

Examples:
  # One group of ten against a local service
  go run ./cmd/futbol-sim

  # Four 7v7 groups with token auth
  go run ./cmd/futbol-sim -groups 4 -players 14 -format 7v7 -jwt-secret dev
`, "\n")
