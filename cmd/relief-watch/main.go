package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joho/godotenv"

	"github.com/reliefworks/go-relief-registry/internal/config"
	"github.com/reliefworks/go-relief-registry/internal/logging"
)

// relief-watch tails the registry's notification stream and logs each event.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	url := fmt.Sprintf("http://%s:%d/api/events", cfg.Server.Host, cfg.Server.Port)
	slog.Info("watching registry events", "url", url)

	resp, err := http.Get(url)
	if err != nil {
		logging.Fatalf("error connecting to event stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logging.Fatalf("unexpected status from event stream: %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	var kind string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			kind = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			slog.Info("notification", "kind", kind, "payload", strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		logging.Fatalf("event stream closed with error: %v", err)
	}
	slog.Info("event stream closed")
}
