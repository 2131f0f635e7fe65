package stealth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"pokewatch/internal/model"
	"pokewatch/internal/providers/common"
)

type Options struct {
	Headless   bool
	Timeout    time.Duration
	Settle     time.Duration
	Locale     string
	TimezoneID string
}

func DefaultOptions() Options {
	return Options{
		Headless:   true,
		Timeout:    45 * time.Second,
		Settle:     3 * time.Second,
		Locale:     "en-AU",
		TimezoneID: "Australia/Melbourne",
	}
}

const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// Provider renders pages through a playwright-driven Chromium with the usual
// automation fingerprints removed. The browser starts on first use and is
// reused until Close.
type Provider struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewProvider(opts Options, logger *zap.Logger) *Provider {
	defaults := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.Locale == "" {
		opts.Locale = defaults.Locale
	}
	if opts.TimezoneID == "" {
		opts.TimezoneID = defaults.TimezoneID
	}
	return &Provider{opts: opts, logger: logger.Named(model.ProviderStealth)}
}

func (p *Provider) Name() string {
	return model.ProviderStealth
}

func (p *Provider) ensureBrowser() (playwright.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.browser != nil && p.browser.IsConnected() {
		return p.browser, nil
	}

	if p.pw == nil {
		pw, err := playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("failed to start playwright: %w", err)
		}
		p.pw = pw
	}

	browser, err := p.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(p.opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	p.browser = browser
	return browser, nil
}

func (p *Provider) Fetch(ctx context.Context, target model.Target) (model.Content, error) {
	if target.CollectionURL == "" {
		return model.Content{}, fmt.Errorf("no collection url for %s", target.Name)
	}
	if err := ctx.Err(); err != nil {
		return model.Content{}, err
	}

	browser, err := p.ensureBrowser()
	if err != nil {
		return model.Content{}, err
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(common.DesktopUserAgent),
		Locale:            playwright.String(p.opts.Locale),
		TimezoneId:        playwright.String(p.opts.TimezoneID),
		JavaScriptEnabled: playwright.Bool(true),
		Viewport:          &playwright.Size{Width: 1920, Height: 1080},
		ExtraHttpHeaders:  map[string]string{"Accept-Language": common.AcceptLanguage},
	})
	if err != nil {
		return model.Content{}, fmt.Errorf("failed to create browser context: %w", err)
	}
	defer bctx.Close()

	if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(hideWebdriver)}); err != nil {
		return model.Content{}, fmt.Errorf("failed to add init script: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		return model.Content{}, fmt.Errorf("failed to create new page: %w", err)
	}

	timeout, err := navigationTimeout(ctx, p.opts.Timeout)
	if err != nil {
		return model.Content{}, err
	}

	if _, err := page.Goto(target.CollectionURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		return model.Content{}, fmt.Errorf("navigate %s: %w", target.CollectionURL, err)
	}
	if p.opts.Settle > 0 {
		page.WaitForTimeout(float64(p.opts.Settle.Milliseconds()))
	}

	html, err := page.Content()
	if err != nil {
		return model.Content{}, fmt.Errorf("failed to get page content: %w", err)
	}

	p.logger.Info("page rendered", zap.String("target", target.Name), zap.Int("bytes", len(html)))
	return model.Content{Kind: model.ContentHTML, Body: []byte(html), Provider: p.Name()}, nil
}

func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.browser != nil {
		if err := p.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
		p.browser = nil
	}
	if p.pw != nil {
		if err := p.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
		p.pw = nil
	}
	return errors.Join(errs...)
}

// navigationTimeout clamps limit to the context deadline. Playwright reads a
// zero timeout as "wait forever", so an expired deadline is an error.
func navigationTimeout(ctx context.Context, limit time.Duration) (time.Duration, error) {
	timeout := limit
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout < time.Millisecond {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 0, context.DeadlineExceeded
	}
	return timeout, nil
}
