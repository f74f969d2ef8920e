package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tyler-le/CraigslistTelegramNotifier/internal/config"
	"github.com/tyler-le/CraigslistTelegramNotifier/internal/craigslist"
	"github.com/tyler-le/CraigslistTelegramNotifier/internal/filters"
	"github.com/tyler-le/CraigslistTelegramNotifier/internal/scheduler"
	"github.com/tyler-le/CraigslistTelegramNotifier/internal/search"
	"github.com/tyler-le/CraigslistTelegramNotifier/internal/seen"
	"github.com/tyler-le/CraigslistTelegramNotifier/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	repo, err := filters.NewFileRepository(cfg.FiltersFilePath)
	if err != nil {
		log.Fatalf("failed to init filter store: %v", err)
	}

	registry, err := seen.NewFileRegistry(cfg.SeenLinksFilePath)
	if err != nil {
		log.Fatalf("failed to init seen-link registry: %v", err)
	}

	var recorder search.Recorder
	if cfg.ResultsFilePath != "" {
		fr, err := search.NewFileRecorder(cfg.ResultsFilePath)
		if err != nil {
			log.Printf("failed to init results recorder: %v", err)
		} else {
			recorder = fr
		}
	}

	client := craigslist.NewClient(cfg.SearchTimeout)
	executor := search.NewExecutor(client, registry, recorder, cfg.DefaultSite)
	guard := search.NewGuard()
	sched := scheduler.New(repo, guard, executor, cfg.SearchInterval, cfg.SearchPause)

	bot, err := telegram.New(cfg.TelegramBotToken, repo, sched)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}
	sched.SetNotifier(bot)

	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot.Start(ctx)
}
