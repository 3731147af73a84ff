package main

import (
	"log"
	"net/http"
	"os"

	"newscraper/api"
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
	server := api.NewServer(st, p, logger)
	router := server.SetupRouter()

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8000"
	}

	logger.Info("starting API server", "addr", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
