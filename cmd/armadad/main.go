package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/tehcyx/armada/internal/config"
	"github.com/tehcyx/armada/pkg/server"
)

func main() {
	log.Println("Launching server...")

	cfg, err := config.LoadDefault()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Server.Debug {
		log.SetLevel(log.DebugLevel)
	}

	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}

	log.Printf("Shutting down server. Bye!\n")
}
