package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/otakulab/media-sync/pkg/app/syncd"
	"github.com/otakulab/media-sync/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := syncd.NewServer(cfg).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "media-sync daemon failed: %v\n", err)
		os.Exit(1)
	}
}
