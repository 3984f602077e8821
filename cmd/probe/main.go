// probe opens one Seek page in the browser and prints what the scrapers see.
// A search URL prints the harvested links, a /job/ URL prints the parsed record.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"go-seek-scraper/internal/browser"
	"go-seek-scraper/internal/config"
	"go-seek-scraper/internal/logger"
	"go-seek-scraper/internal/scraper/seek"

	"go.uber.org/zap"
)

func main() {
	limit := flag.Int("limit", 10, "max links to print for a search page")
	show := flag.Bool("show", false, "run the browser with a window")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: probe [-limit n] [-show] <seek url>")
		os.Exit(64)
	}
	target := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, closer, err := logger.New(logger.Options{Level: "debug"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	cookies, err := browser.LoadCookies(cfg.CookiesPath)
	if err != nil {
		log.Info("no cookies loaded", zap.String("path", cfg.CookiesPath), zap.Error(err))
	} else {
		log.Info("cookies available", zap.Int("count", len(cookies)))
	}

	ctx := context.Background()
	session, err := browser.Open(ctx, browser.Options{
		UserAgent:   cfg.UserAgent,
		ShowBrowser: *show || cfg.ShowBrowser,
		CookiesPath: cfg.CookiesPath,
		DebugDir:    cfg.DebugDir,
		SettleDelay: cfg.SettleDelay,
		Logger:      log,
	})
	if err != nil {
		log.Fatal("failed to open browser", zap.Error(err))
	}
	defer session.Close()

	var out any
	if strings.Contains(target, "/job/") {
		rec, err := seek.NewExtractor(cfg.PageTimeout, log).Extract(ctx, session, target)
		if err != nil {
			log.Error("extraction stopped", zap.Error(err))
		}
		out = rec
	} else {
		links, err := probeSearch(ctx, session, target, *limit, cfg, log)
		if err != nil {
			log.Error("search probe failed", zap.Error(err))
		}
		out = links
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func probeSearch(ctx context.Context, session *browser.Session, target string, limit int, cfg *config.Config, log *zap.Logger) ([]string, error) {
	if err := session.NavigateAndWait(ctx, target, []string{`article[data-card-type="JobCard"]`}, cfg.PageTimeout); err != nil {
		session.CaptureDebug("probe-search", err.Error())
		return nil, err
	}
	session.Settle()
	html, err := session.Content()
	if err != nil {
		return nil, err
	}
	links, cards, err := seek.NewHarvester(cfg.BaseURL, cfg.PageTimeout, log).ParseLinks(html, limit)
	log.Info("search page parsed", zap.Int("cards", cards), zap.Int("links", len(links)))
	return links, err
}
