package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN,required"`

	// Storage
	FiltersFilePath   string `env:"FILTERS_FILE_PATH" envDefault:"data/filters.json"`
	SeenLinksFilePath string `env:"SEEN_LINKS_FILE_PATH" envDefault:"data/scraped_links.txt"`
	ResultsFilePath   string `env:"RESULTS_FILE_PATH" envDefault:"data/results.jsonl"`

	// Search settings
	SearchInterval time.Duration `env:"SEARCH_INTERVAL" envDefault:"10m"`
	SearchPause    time.Duration `env:"SEARCH_PAUSE" envDefault:"3s"`
	SearchTimeout  time.Duration `env:"SEARCH_TIMEOUT" envDefault:"15s"`

	// Craigslist subdomain used when a filter's location has no known city code
	DefaultSite string `env:"DEFAULT_SITE" envDefault:"sandiego"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
