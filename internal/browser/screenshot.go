package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// ScreenshotDebugger handles debug screenshots
type ScreenshotDebugger struct {
	outputDir string
	logger    *zap.Logger
}

func NewScreenshotDebugger(dir string, logger *zap.Logger) *ScreenshotDebugger {
	return &ScreenshotDebugger{
		outputDir: dir,
		logger:    logger,
	}
}

// Filename builds the screenshot file name for name at t.
func (s *ScreenshotDebugger) Filename(name string, t time.Time) string {
	return filepath.Join(s.outputDir, fmt.Sprintf("%s_%s.png", name, t.Format("2006-01-02_15-04-05")))
}

func (s *ScreenshotDebugger) CaptureAndLog(page playwright.Page, name, message string) error {
	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		s.logger.Warn("could not create screenshot directory", zap.Error(err))
		return err
	}
	path := s.Filename(name, time.Now())

	_, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		s.logger.Warn("failed to capture screenshot", zap.String("reason", message), zap.Error(err))
		return err
	}

	s.logger.Info("debug screenshot saved", zap.String("reason", message), zap.String("path", path))
	return nil
}
