package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arbi-bot/internal/bot"
	"github.com/arbi-bot/internal/config"
	"github.com/arbi-bot/internal/exchange"
	_ "github.com/arbi-bot/internal/exchange/poloniex"
	"github.com/arbi-bot/internal/notification"
	"github.com/arbi-bot/internal/storage"
)

// Build info (injected at build time via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	log.Printf("arbi-bot %s (commit %s, built %s)", Version, Commit, BuildTime)

	// Load configuration
	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize storage
	var store storage.OpportunityStorage
	if cfg.Storage != nil && cfg.Storage.Enabled {
		store, err = storage.NewSQLiteStorage(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("Failed to initialize storage: %v", err)
		}
	}

	// Initialize notifications
	notifier := initNotifier(cfg)

	// Build the exchange registry from config
	manager, err := exchange.NewManagerFromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to build exchange manager: %v", err)
	}

	ctx := context.Background()
	if err := manager.ConnectAll(ctx); err != nil {
		log.Fatalf("Failed to connect exchanges: %v", err)
	}

	// Start the bot
	b := bot.New(cfg, manager, store, notifier)
	if err := b.Start(ctx); err != nil {
		log.Fatalf("Failed to start bot: %v", err)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	b.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := manager.DisconnectAll(shutdownCtx); err != nil {
		log.Printf("Error disconnecting exchanges: %v", err)
	}

	if notifier != nil {
		if err := notifier.Close(); err != nil {
			log.Printf("Error closing notifier: %v", err)
		}
	}

	if store != nil {
		if err := store.Close(); err != nil {
			log.Printf("Error closing storage: %v", err)
		}
	}

	log.Println("Bot exited properly")
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config.yaml"
}

func initNotifier(cfg *config.Config) notification.Notifier {
	if cfg.Notification == nil || cfg.Notification.Telegram == nil || !cfg.Notification.Telegram.Enabled {
		return nil
	}

	telegram, err := notification.NewTelegramNotifier(cfg.Notification.Telegram)
	if err != nil {
		log.Printf("Warning: Telegram notifications disabled: %v", err)
		return nil
	}
	return telegram
}
