// Package main provides a static file server with permissive CORS headers for local development.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/f4ah6o/devserve-go/internal/banner"
	"github.com/f4ah6o/devserve-go/internal/config"
	"github.com/f4ah6o/devserve-go/internal/server"
)

func main() {
	cfg, err := buildConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// buildConfig starts from the compiled-in defaults, overlays the config file
// if one is given, then any flags that were set explicitly.
func buildConfig(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("devserve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to a TOML or YAML config file")
	port := fs.Int("port", config.DefaultPort, "Port to serve on")
	dir := fs.String("dir", "", "Directory to serve (default: the directory of this executable)")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "dir":
			cfg.Root = *dir
		}
	})

	return cfg.Resolve()
}

// run binds the listener, prints the banner and serves until ctx is done.
func run(ctx context.Context, cfg config.Config, out io.Writer) error {
	ln, err := server.Listen(cfg)
	if err != nil {
		return err
	}

	banner.Startup(out, cfg)

	interrupted := make(chan struct{})
	stopNotice := context.AfterFunc(ctx, func() {
		banner.ShuttingDown(out)
		close(interrupted)
	})

	err = server.New(cfg).Serve(ctx, ln)
	// The notice may still be writing to out; nothing writes after run returns.
	if !stopNotice() {
		<-interrupted
	}
	if err != nil {
		return err
	}
	banner.Closed(out)
	return nil
}
