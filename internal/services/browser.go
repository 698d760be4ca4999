package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/logger"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

// ErrDocumentLoad means the rendering surface could not load the receipt.
var ErrDocumentLoad = errors.New("failed to load receipt document")

const cssDPI = 96.0

// Browser renders an HTML document to a PNG exactly widthDots pixels wide.
type Browser interface {
	Capture(ctx context.Context, html string, widthMM, widthDots int) ([]byte, error)
	Close() error
}

// ChromeBrowser keeps one Chrome process alive and opens a fresh tab for
// every capture. The process is started by the first capture.
type ChromeBrowser struct {
	timeout     time.Duration
	renderDelay time.Duration
	log         *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu            sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc
	started       bool
}

// NewChromeBrowser starts an allocator for the Chrome at execPath, or
// connects to cfg.RemoteURL when it is set.
func NewChromeBrowser(cfg model.ChromeConfig, execPath string, renderDelay time.Duration, log *zap.Logger) *ChromeBrowser {
	b := &ChromeBrowser{
		timeout:     cfg.Timeout,
		renderDelay: renderDelay,
		log:         logger.OrNop(log).Named("chrome"),
	}

	if cfg.RemoteURL != "" {
		b.allocCtx, b.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return b
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.ExecPath != "" {
		execPath = cfg.ExecPath
	}
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return b
}

func (b *ChromeBrowser) Capture(ctx context.Context, html string, widthMM, widthDots int) ([]byte, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	browserCtx, err := b.browser()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentLoad, err)
	}
	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	cssWidth := int64(math.Round(float64(widthMM) * cssDPI / 25.4))
	scale := float64(widthDots) / float64(cssWidth)

	err = chromedp.Run(tabCtx,
		emulation.SetDeviceMetricsOverride(cssWidth, 600, scale, false),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentLoad, err)
	}

	var height float64
	var png []byte
	err = chromedp.Run(tabCtx,
		chromedp.Sleep(b.renderDelay),
		chromedp.Evaluate(`document.documentElement.scrollHeight`, &height),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDeviceMetricsOverride(cssWidth, int64(math.Ceil(max(height, 1))), scale, false).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, err := page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(true).
				Do(ctx)
			if err != nil {
				return err
			}
			png = buf
			return nil
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("receipt capture cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("receipt capture failed: %w", err)
	}
	if len(png) == 0 {
		return nil, fmt.Errorf("receipt capture returned an empty image")
	}
	return png, nil
}

// browser returns the shared browser context, starting Chrome if it is not
// running. A browser that died is replaced on the next call.
func (b *ChromeBrowser) browser() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started && b.browserCtx.Err() == nil {
		return b.browserCtx, nil
	}
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCtx.Err() != nil {
		return nil, fmt.Errorf("browser closed")
	}

	b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			b.log.Debug(fmt.Sprintf(format, args...))
		}),
	)
	b.started = false
	if err := chromedp.Run(b.browserCtx); err != nil {
		b.browserCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}
	b.started = true
	b.log.Info("chrome started")
	return b.browserCtx, nil
}

// Close shuts the browser down.
func (b *ChromeBrowser) Close() error {
	b.mu.Lock()
	if b.browserCancel != nil {
		b.browserCancel()
	}
	b.mu.Unlock()
	if b.allocCancel != nil {
		b.allocCancel()
	}
	return nil
}

var _ Browser = (*ChromeBrowser)(nil)
