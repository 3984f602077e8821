// Package app wires config, browser, scrapers, storage and the optional
// integrations into one runnable scraper.
package app

import (
	"context"
	"time"

	"go-seek-scraper/internal/browser"
	"go-seek-scraper/internal/config"
	"go-seek-scraper/internal/database"
	"go-seek-scraper/internal/history"
	"go-seek-scraper/internal/logger"
	"go-seek-scraper/internal/models"
	"go-seek-scraper/internal/notify"
	"go-seek-scraper/internal/scraper"
	"go-seek-scraper/internal/scraper/seek"
	"go-seek-scraper/internal/service"
	"go-seek-scraper/internal/storage/csvstore"

	"go.uber.org/zap"
)

type App struct {
	orch   *service.Orchestrator
	bot    *notify.Bot
	repo   *database.Repository
	logger *zap.Logger
}

// New builds the app. Telegram and Postgres are only set up when configured;
// failing to reach them is logged and the scraper runs without them.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) *App {
	a := &App{logger: log}

	launch := func(ctx context.Context) (service.Session, error) {
		s, err := browser.Open(ctx, browser.Options{
			UserAgent:   cfg.UserAgent,
			ShowBrowser: cfg.ShowBrowser,
			CookiesPath: cfg.CookiesPath,
			DebugDir:    cfg.DebugDir,
			SettleDelay: cfg.SettleDelay,
			Logger:      log,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	hist := history.Open(cfg.CachePath, log)
	log.Debug("scrape history loaded", zap.Int("urls", hist.Len()))

	a.orch = service.NewOrchestrator(
		launch,
		seek.NewHarvester(cfg.BaseURL, cfg.PageTimeout, log),
		seek.NewExtractor(cfg.PageTimeout, log),
		csvstore.New(cfg.OutputDir, log),
		log,
		service.WithHistory(hist),
	)

	if cfg.TelegramEnabled() {
		bot, err := notify.NewBot(cfg.TelegramToken, cfg.TelegramChatID, log)
		if err != nil {
			log.Warn("telegram disabled", zap.Error(err))
		} else {
			a.bot = bot
		}
	}

	if cfg.DatabaseURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		repo, err := database.ConnectDB(connectCtx, cfg.DatabaseURL)
		if err == nil {
			err = repo.EnsureSchema(connectCtx)
			if err != nil {
				repo.Close()
			}
		}
		if err != nil {
			log.Warn("database export disabled", zap.Error(err))
		} else {
			a.repo = repo
		}
	}
	return a
}

// Run scrapes q, then exports and announces the result.
func (a *App) Run(ctx context.Context, q scraper.JobQuery) service.Result {
	res := a.orch.Run(ctx, q)
	a.export(ctx, res)
	if a.bot != nil {
		_ = a.bot.SendRunSummary(res, q)
	}
	return res
}

func (a *App) export(ctx context.Context, res service.Result) {
	records := service.Records(res)
	if a.repo == nil || len(records) == 0 {
		return
	}
	// a cancelled run still gets its rows stored
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	rows := make([]models.ScrapedJob, 0, len(records))
	for _, rec := range records {
		rows = append(rows, models.FromRecord(service.RunID(res), rec, now))
	}
	if err := a.repo.SaveJobs(ctx, rows); err != nil {
		a.logger.Warn("database export failed", zap.String(logger.KeyRunID, service.RunID(res)), zap.Error(err))
		return
	}
	stored, err := a.repo.CountRun(ctx, service.RunID(res))
	if err != nil {
		a.logger.Warn("could not verify database export", zap.String(logger.KeyRunID, service.RunID(res)), zap.Error(err))
		return
	}
	a.logger.Info("records exported to database",
		zap.String(logger.KeyRunID, service.RunID(res)),
		zap.Int("rows", len(rows)),
		zap.Int("stored", stored))
}

func (a *App) Close() {
	if a.repo != nil {
		a.repo.Close()
	}
}
