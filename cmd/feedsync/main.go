// Command feedsync runs a single sync, sweep or report job from the shell.
//
//	feedsync -source aspo sync
//	feedsync -source aspo -dry-run=false sweep
//	feedsync -source flatprime report
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"realty-feed-sync/internal/app"
	"realty-feed-sync/internal/config"
	"realty-feed-sync/internal/importer"
	"realty-feed-sync/internal/state"
)

type cliConfig struct {
	configPath string
	source     string
	dryRun     bool
	listFeeds  bool
}

func parseFlags() (cliConfig, string) {
	var c cliConfig
	flag.StringVar(&c.configPath, "config", "config/feedsync.yaml", "path to the YAML configuration")
	flag.StringVar(&c.source, "source", "", "feed source name (all feeds when empty)")
	flag.BoolVar(&c.dryRun, "dry-run", true, "sweep: only report what would be deleted")
	flag.BoolVar(&c.listFeeds, "list", false, "print configured feeds and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] sync|sweep|report\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	return c, flag.Arg(0)
}

func main() {
	c, command := parseFlags()

	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.ApplyEnv()

	if c.listFeeds {
		for _, f := range cfg.Feeds {
			fmt.Printf("%s\t%s\t%s\t%s\n", f.Name, f.Schema, f.Mode, f.URL)
		}
		return
	}

	switch command {
	case "sync", "sweep", "report":
	default:
		flag.Usage()
		os.Exit(2)
	}

	sources := []string{c.source}
	if c.source == "" {
		sources = sources[:0]
		for _, f := range cfg.Feeds {
			sources = append(sources, f.Name)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	exit := 0
	for _, source := range sources {
		result, err := run(ctx, a, command, source, c.dryRun)
		if err != nil {
			if errors.Is(err, importer.ErrAlreadyRunning) || errors.Is(err, state.ErrLocked) {
				log.Printf("%s: %s skipped: %v", source, command, err)
				continue
			}
			log.Printf("%s: %s failed: %v", source, command, err)
			exit = 1
			continue
		}
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
	}
	if exit != 0 {
		a.Close()
		os.Exit(exit)
	}
}

func run(ctx context.Context, a *app.App, command, source string, dryRun bool) (any, error) {
	switch command {
	case "sync":
		return a.Runner.Sync(ctx, source, importer.TriggerCLI)
	case "sweep":
		return a.Runner.Sweep(ctx, source, importer.TriggerCLI, dryRun)
	default:
		return a.Runner.Report(ctx, source, importer.TriggerCLI)
	}
}
