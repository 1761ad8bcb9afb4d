// Companion backend for an elderly-care voice assistant: connects the
// hosted voice agent to emergency handling, contacts, reminiscence memory
// and facility tools.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/carewell-ai/go-companion/pkg/companion"
)

func main() {
	cfg := parseFlags()

	app, err := companion.New(cfg)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		log.Fatalf("initialization failed: %v", err)
	}
	defer app.Shutdown()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}

// parseFlags parses command line flags and returns configuration.
// Environment overrides are applied later by companion.New.
func parseFlags() companion.Config {
	cfg := companion.DefaultConfig()

	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	addr := flag.String("addr", cfg.HTTPAddr, "Admin server listen address")
	dataDir := flag.String("data", cfg.DataDir, "Data directory (biography, facility files, contact database)")
	resident := flag.String("resident", cfg.ResidentName, "Resident name")
	assistant := flag.String("assistant", cfg.AssistantName, "Assistant name")
	completeAfter := flag.Duration("complete-after", cfg.CompleteAfter, "Emergency gather window before the report is sent")
	cooldown := flag.Duration("cooldown", cfg.Cooldown, "Minimum interval between emergency calls")
	envFile := flag.String("env", ".env", "Path to env file with credentials")
	flag.Parse()

	// Missing env file is fine; real environments set variables directly.
	if err := godotenv.Load(*envFile); err == nil {
		log.Printf("loaded environment from %s", *envFile)
	}

	cfg.Debug = *debug
	cfg.HTTPAddr = *addr
	cfg.DataDir = *dataDir
	cfg.ResidentName = *resident
	cfg.AssistantName = *assistant
	cfg.CompleteAfter = *completeAfter
	cfg.Cooldown = *cooldown

	if cfg.CompleteAfter <= 0 {
		cfg.CompleteAfter = 10 * time.Second
	}
	return cfg
}
