package chromium

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"pokewatch/internal/model"
	"pokewatch/internal/providers/common"
)

type Options struct {
	ExecPath string
	Timeout  time.Duration
	// Settle is how long to wait after <body> is visible for client-side
	// product grids to render.
	Settle time.Duration
}

func DefaultOptions() Options {
	return Options{
		Timeout: 45 * time.Second,
		Settle:  3 * time.Second,
	}
}

// Provider renders the collection page in a local headless Chrome.
type Provider struct {
	opts   Options
	logger *zap.Logger
}

func NewProvider(opts Options, logger *zap.Logger) *Provider {
	defaults := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.Settle < 0 {
		opts.Settle = 0
	}
	return &Provider{opts: opts, logger: logger.Named(model.ProviderChromium)}
}

func (p *Provider) Name() string {
	return model.ProviderChromium
}

func (p *Provider) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.NoSandbox,
		chromedp.UserAgent(common.DesktopUserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	if p.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(p.opts.ExecPath))
	}
	return opts
}

func (p *Provider) Fetch(ctx context.Context, target model.Target) (model.Content, error) {
	if target.CollectionURL == "" {
		return model.Content{}, fmt.Errorf("no collection url for %s", target.Name)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, p.allocatorOptions()...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	taskCtx, cancel := context.WithTimeout(taskCtx, p.opts.Timeout)
	defer cancel()

	start := time.Now()
	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(target.CollectionURL),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.Sleep(p.opts.Settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return model.Content{}, fmt.Errorf("render %s: %w", target.CollectionURL, err)
	}

	p.logger.Info("page rendered",
		zap.String("target", target.Name),
		zap.Int("bytes", len(html)),
		zap.Duration("took", time.Since(start)),
	)
	return model.Content{Kind: model.ContentHTML, Body: []byte(html), Provider: p.Name()}, nil
}
