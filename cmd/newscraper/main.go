package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"newscraper/config"
	"newscraper/feed"
	"newscraper/logging"
	"newscraper/pipeline"
	"newscraper/scrape"
	"newscraper/store"
)

func main() {
	cfg, err := config.LoadDefault()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(os.Getenv("LOG_LEVEL"))

	st, err := store.New(cfg.Storage.DatabasePath, cfg.Storage.OutputDir)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	client := &http.Client{Timeout: cfg.RequestTimeout()}
	reader := feed.NewReader(client, cfg.Settings.UserAgent)
	scraper := scrape.New(client, cfg.Settings.UserAgent, cfg.Settings.DownloadImages, cfg.Storage.ImageDir)

	p := pipeline.New(cfg, st, reader, scraper, logger)

	stats, err := p.Run(context.Background())
	if err != nil {
		log.Fatalf("Scrape run failed: %v", err)
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		log.Fatalf("Failed to render stats: %v", err)
	}
	fmt.Printf("Scraping completed. Results: %s\n", out)
}
