package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/greenroom/internal/drill"
	"github.com/okian/greenroom/pkg/logger"
)

// Default configuration constants.
const (
	defaultSessions     = 100
	defaultAnswers      = 3
	defaultTimeout      = 30 * time.Second
	defaultDrillTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8090", "Base URL of the service")
		sessions = flag.Int("sessions", defaultSessions, "Number of interviews to run")
		answers  = flag.Int("answers", defaultAnswers, "Answers per interview (also the target question count)")
		workers  = flag.Int("workers", runtime.NumCPU()*2, "Number of concurrent workers")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultDrillTimeout)
	defer cancel()

	cfg := &drill.Config{
		BaseURL:  *baseURL,
		Sessions: *sessions,
		Answers:  *answers,
		Workers:  *workers,
		Timeout:  *timeout,
		Verbose:  *verbose,
	}
	if err := drill.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("drill failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
