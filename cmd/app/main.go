package main

import (
	"flag"
	"log"
	"os"

	"ChurnScope/internal/di"
	"ChurnScope/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s kafka=%t clickhouse=%t cache=%t", cfg.Environment, cfg.Kafka.Enabled, cfg.ClickHouse.Enabled, cfg.Cache.Enabled)

	// a model that cannot be loaded is fatal: there is no degraded mode
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("model loaded version=%s source=%s", app.ModelVersion(), cfg.ModelSource())

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
