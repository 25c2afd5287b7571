// Command mlpnet-server serves training and inference over HTTP.
package main

import (
	"flag"
	"log"

	"github.com/FlavioCFOliveira/mlpnet/internal/config"
	"github.com/FlavioCFOliveira/mlpnet/internal/server"
	"github.com/FlavioCFOliveira/mlpnet/internal/store"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config")
	addr := flag.String("addr", "", "Listen address (default :3000)")
	maxEpochs := flag.Uint("max-epochs", 0, "Reject training requests above this many epochs")

	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	if *maxEpochs > uint(^uint32(0)) {
		log.Fatalf("invalid -max-epochs %d", *maxEpochs)
	}
	cfg.ApplyOverrides(config.Overrides{
		Addr:      *addr,
		MaxEpochs: uint32(*maxEpochs),
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	srv := server.New(store.New(), server.Options{MaxEpochs: cfg.Server.MaxEpochs})
	if err := srv.ListenAndServe(cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
