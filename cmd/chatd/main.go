package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"aim-chat/conversation-core/internal/app"
	"aim-chat/conversation-core/internal/composition/chatserver"
	"aim-chat/conversation-core/internal/config"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	addr := flag.String("addr", "", "HTTP listen address override")
	dataDir := flag.String("data-dir", "", "Storage directory override")
	flag.Parse()
	if *showVersion {
		fmt.Printf("chatd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	cfg, err := config.LoadFromPath(*configPath)
	if err != nil {
		log.Fatalf("chatd config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dataDir != "" {
		cfg.Storage.Path = *dataDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := app.DefaultLogger(cfg.Log.Level)
	runtime, err := chatserver.Build(cfg, logger)
	if err != nil {
		log.Fatalf("chatd failed to initialize: %v", err)
	}
	if err := runtime.Run(ctx); err != nil {
		log.Fatalf("chatd failed: %v", err)
	}
}
