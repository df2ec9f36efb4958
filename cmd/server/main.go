// Package main is the entry point for the reasend bridge server
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/james-see/reasend/pkg/api"
	"github.com/james-see/reasend/pkg/config"
	"github.com/james-see/reasend/pkg/host/memhost"
)

func main() {
	configPath := flag.String("config", "", "Config file with the project to serve")
	port := flag.Int("port", 0, "Server port (default from config)")
	lease := flag.Duration("lease", 0, "Idle session lease (default from config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if *port == 0 {
		*port = cfg.Server.Port
	}
	if *lease == 0 {
		*lease = cfg.Server.SessionLease()
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	h := memhost.New(memhost.WithLogger(log), memhost.WithExtension(cfg.Project.Extension))
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = h.Load(ctx, cfg.Project.Project())
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Project error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Starting reasend bridge server on port %d...\n", *port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", *port)

	if err := api.StartServer(*port, h, api.WithLogger(log), api.WithSessionLease(*lease)); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
