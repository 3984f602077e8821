package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go-seek-scraper/internal/app"
	"go-seek-scraper/internal/config"
	"go-seek-scraper/internal/logger"
	"go-seek-scraper/internal/scraper"
	"go-seek-scraper/internal/service"

	"go.uber.org/zap"
)

const exitUsage = 64

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: scraper <job title> <location> <count>")
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	//logs go to stderr, stdout carries only the result JSON
	log, closer, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer closer.Close()
	defer log.Sync()

	q, ok := scraper.NewJobQuery(args[0], args[1], args[2])
	if !ok {
		log.Warn("invalid job count, using default", zap.String("count", args[2]), zap.Int("default", q.Limit))
	}
	if q.Title == "" {
		fmt.Fprintln(os.Stderr, "job title must not be empty")
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scraperApp := app.New(ctx, cfg, log)
	defer scraperApp.Close()

	res := scraperApp.Run(ctx, q)
	if err := writeResult(res); err != nil {
		log.Error("failed to write result", zap.Error(err))
		return 1
	}
	return service.ExitCode(res)
}

func writeResult(res service.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
