package browser

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "go-seek-scraper/internal/errors"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// hides the automation flag that headless Chromium exposes to page scripts
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['en-AU', 'en'] });
window.chrome = window.chrome || { runtime: {} };
`

type Options struct {
	UserAgent   string
	ShowBrowser bool
	// CookiesPath is an optional JSON cookie export loaded into the context.
	CookiesPath string
	// DebugDir receives screenshots of pages that time out. Empty disables capture.
	DebugDir string
	// SettleDelay is an extra pause after scrolling a results page.
	SettleDelay time.Duration
	Logger      *zap.Logger
}

// Session owns one Playwright driver, browser, context and page.
type Session struct {
	pw       *playwright.Playwright
	browser  playwright.Browser
	context  playwright.BrowserContext
	page     playwright.Page
	debugger *ScreenshotDebugger
	settle   time.Duration
	logger   *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open launches headless Chromium. Failures are SESSION_LAUNCH errors and leave nothing running.
func Open(ctx context.Context, opts Options) (s *Session, err error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.SessionLaunch("context done before launch", err)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s = &Session{logger: opts.Logger, settle: opts.SettleDelay}
	defer func() {
		if err != nil {
			_ = s.Close()
			s = nil
		}
	}()

	s.pw, err = playwright.Run()
	if err != nil {
		return s, apperrors.SessionLaunch("could not start playwright", err)
	}

	s.browser, err = s.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless:          playwright.Bool(!opts.ShowBrowser),
		IgnoreDefaultArgs: []string{"--enable-automation"},
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--no-sandbox",
			"--disable-dev-shm-usage",
		},
	})
	if err != nil {
		return s, apperrors.SessionLaunch("could not launch chromium", err)
	}

	s.context, err = s.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(opts.UserAgent),
		Locale:    playwright.String("en-AU"),
		Viewport:  &playwright.Size{Width: 1366, Height: 768},
	})
	if err != nil {
		return s, apperrors.SessionLaunch("could not create browser context", err)
	}

	if err = s.context.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		return s, apperrors.SessionLaunch("could not install stealth script", err)
	}

	if opts.CookiesPath != "" {
		cookies, cerr := LoadCookies(opts.CookiesPath)
		if cerr != nil {
			s.logger.Warn("could not load cookies, continuing without them", zap.String("path", opts.CookiesPath), zap.Error(cerr))
		} else if err = s.context.AddCookies(cookies); err != nil {
			return s, apperrors.SessionLaunch("could not add cookies", err)
		} else {
			s.logger.Info("cookies loaded", zap.Int("count", len(cookies)))
		}
	}

	s.page, err = s.context.NewPage()
	if err != nil {
		return s, apperrors.SessionLaunch("could not create page", err)
	}

	if opts.DebugDir != "" {
		s.debugger = NewScreenshotDebugger(opts.DebugDir, s.logger)
	}
	return s, nil
}

// NavigateAndWait loads url and blocks until any of readySelectors is attached
// or timeout elapses.
func (s *Session) NavigateAndWait(ctx context.Context, url string, readySelectors []string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return apperrors.RunFault("navigation cancelled", err)
	}
	if s.page == nil || s.page.IsClosed() {
		return apperrors.SessionLost("page is closed", nil)
	}

	deadline := time.Now().Add(timeout)
	if _, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return s.classify(fmt.Sprintf("loading %s", url), err)
	}

	if len(readySelectors) == 0 {
		return nil
	}
	remaining, err := remainingBudget(deadline, time.Now())
	if err != nil {
		return apperrors.NavigationTimeout(fmt.Sprintf("waiting for %s", url), err)
	}
	if _, err := s.page.WaitForSelector(strings.Join(readySelectors, ", "), playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(remaining.Milliseconds())),
	}); err != nil {
		return s.classify(fmt.Sprintf("waiting for %s", url), err)
	}
	return nil
}

// remainingBudget is what is left of one navigation's timeout at now.
// Playwright treats a zero timeout as unlimited, so anything under a
// millisecond counts as spent.
func remainingBudget(deadline, now time.Time) (time.Duration, error) {
	left := deadline.Sub(now)
	if left < time.Millisecond {
		return 0, fmt.Errorf("navigation budget exhausted by page load")
	}
	return left, nil
}

// Content returns the rendered HTML of the current page.
func (s *Session) Content() (string, error) {
	if s.page == nil || s.page.IsClosed() {
		return "", apperrors.SessionLost("page is closed", nil)
	}
	html, err := s.page.Content()
	if err != nil {
		return "", s.classify("reading page content", err)
	}
	return html, nil
}

// Settle scrolls like a reader so lazily rendered cards are attached.
func (s *Session) Settle() {
	if s.page == nil || s.page.IsClosed() {
		return
	}
	SmoothScroll(s.page)
	if s.settle > 0 {
		time.Sleep(s.settle)
	}
}

// CaptureDebug stores a screenshot of the current page. It never fails the caller.
func (s *Session) CaptureDebug(name, message string) {
	if s.debugger == nil || s.page == nil || s.page.IsClosed() {
		return
	}
	_ = s.debugger.CaptureAndLog(s.page, name, message)
}

// Close releases page, context, browser and driver. It is safe to call more than once.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				s.closeErr = multierr.Append(s.closeErr, fmt.Errorf("panic during browser close: %v", r))
			}
		}()
		if s.page != nil && !s.page.IsClosed() {
			s.closeErr = multierr.Append(s.closeErr, s.page.Close())
		}
		if s.context != nil {
			s.closeErr = multierr.Append(s.closeErr, s.context.Close())
		}
		if s.browser != nil {
			s.closeErr = multierr.Append(s.closeErr, s.browser.Close())
		}
		if s.pw != nil {
			s.closeErr = multierr.Append(s.closeErr, s.pw.Stop())
		}
	})
	return s.closeErr
}

func (s *Session) classify(message string, err error) error {
	switch {
	case stderrors.Is(err, playwright.ErrTimeout):
		return apperrors.NavigationTimeout(message, err)
	case stderrors.Is(err, playwright.ErrTargetClosed), s.page.IsClosed(), !s.browser.IsConnected():
		return apperrors.SessionLost(message, err)
	default:
		return apperrors.NavigationFailed(message, err)
	}
}
