// Package notify sends run summaries to a Telegram chat.
package notify

import (
	"fmt"
	"strings"

	"go-seek-scraper/internal/logger"
	"go-seek-scraper/internal/scraper"
	"go-seek-scraper/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// maxListed caps how many jobs are linked in one summary.
const maxListed = 10

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api    sender
	chatID int64
	logger *zap.Logger
}

func NewBot(token string, chatID int64, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return newBot(api, chatID, log), nil
}

func newBot(api sender, chatID int64, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{api: api, chatID: chatID, logger: log.With(zap.String("component", "telegram"))}
}

func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(",
		")", "\\)", "~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#",
		"+", "\\+", "-", "\\-", "=", "\\=", "|", "\\|", "{", "\\{",
		"}", "\\}", ".", "\\.", "!", "\\!",
	)
	return replacer.Replace(text)
}

// escapeLink escapes the characters MarkdownV2 reserves inside a link target.
func escapeLink(url string) string {
	return strings.NewReplacer("\\", "\\\\", ")", "\\)").Replace(url)
}

// FormatSummary renders r as a MarkdownV2 message.
func FormatSummary(r service.Result, q scraper.JobQuery) string {
	var b strings.Builder

	icon := map[string]string{"success": "✅", "partial": "⚠️", "failed": "❌"}[service.Outcome(r)]
	fmt.Fprintf(&b, "%s *Seek run %s*\n", icon, escapeMarkdown(service.Outcome(r)))
	fmt.Fprintf(&b, "🔎 %s in %s\n", escapeMarkdown(q.Title), escapeMarkdown(q.Location))
	fmt.Fprintf(&b, "🆔 `%s`\n", escapeMarkdown(service.RunID(r)))

	records := service.Records(r)
	failed := 0
	for _, rec := range records {
		if rec.IsError() {
			failed++
		}
	}
	if _, fatal := r.(service.FatalFailure); !fatal {
		fmt.Fprintf(&b, "📋 %d jobs, %d unreadable\n", len(records), failed)
	}
	if path := service.Path(r); path != "" {
		fmt.Fprintf(&b, "📁 %s\n", escapeMarkdown(path))
	}
	if err := service.Err(r); err != nil {
		fmt.Fprintf(&b, "❗ %s\n", escapeMarkdown(err.Error()))
	}

	listed := 0
	for _, rec := range records {
		if rec.IsError() {
			continue
		}
		if listed == maxListed {
			fmt.Fprintf(&b, "…and %d more\n", len(records)-failed-listed)
			break
		}
		line := fmt.Sprintf("• [%s](%s)", escapeMarkdown(rec.Title()), escapeLink(rec.URL()))
		if company := rec.Get(scraper.FieldCompany); company != scraper.Placeholder {
			line += " " + escapeMarkdown("- "+company)
		}
		b.WriteString(line + "\n")
		listed++
	}
	return b.String()
}

// SendRunSummary posts the summary of r to the configured chat.
func (b *Bot) SendRunSummary(r service.Result, q scraper.JobQuery) error {
	msg := tgbotapi.NewMessage(b.chatID, FormatSummary(r, q))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("failed to send run summary", zap.String(logger.KeyRunID, service.RunID(r)), zap.Error(err))
		return err
	}
	b.logger.Info("run summary sent", zap.String(logger.KeyRunID, service.RunID(r)))
	return nil
}
