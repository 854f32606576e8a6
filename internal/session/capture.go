package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mkerring/pagetrace/internal/browser"
)

// CaptureScreenshot runs the lightweight screenshot-only flow: chromium, no
// event collection, no recording. It returns the raw screenshot bytes and the
// URL the page actually landed on.
func (r *Runner) CaptureScreenshot(ctx context.Context, url string, fullPage bool) (shot []byte, finalURL string, err error) {
	b, err := r.launcher.Launch(browser.EngineChromium, browser.LaunchOptions{
		Headless:       r.cfg.Headless,
		ExecutablePath: r.cfg.ExecutablePath,
	})
	if err != nil {
		return nil, "", err
	}
	defer b.Close()

	bctx, err := b.NewContext(browser.ContextOptions{})
	if err != nil {
		return nil, "", err
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return nil, "", err
	}

	if err := page.Navigate(url, browser.NavigateOptions{Timeout: r.cfg.NavigationTimeout}); err != nil {
		if !errors.Is(err, browser.ErrNavigationTimeout) {
			return nil, "", fmt.Errorf("navigating to %s: %w", url, err)
		}
		r.log.Warn("Screenshot navigation timed out; capturing current state.", zap.String("url", url))
	}

	shot, err = page.Screenshot(fullPage)
	if err != nil {
		return nil, "", fmt.Errorf("capturing screenshot: %w", err)
	}
	return shot, page.URL(), nil
}

// RecordVideo browses the URL with session recording enabled and returns the
// recorded webm fully read into memory. The temporary file is deleted before
// returning, success or not.
func (r *Runner) RecordVideo(ctx context.Context, url, engineName string, width, height int) ([]byte, error) {
	engine, err := browser.ResolveEngine(engineName)
	if err != nil {
		return nil, err
	}
	if width <= 0 {
		width = r.cfg.VideoWidth
	}
	if height <= 0 {
		height = r.cfg.VideoHeight
	}

	b, err := r.launcher.Launch(engine, browser.LaunchOptions{
		Headless:       r.cfg.Headless,
		ExecutablePath: r.cfg.ExecutablePath,
	})
	if err != nil {
		return nil, err
	}
	defer b.Close()

	bctx, err := b.NewContext(browser.ContextOptions{
		RecordVideo: &browser.VideoOptions{Dir: r.cfg.VideoDir, Width: width, Height: height},
	})
	if err != nil {
		return nil, err
	}

	contextClosed := false
	defer func() {
		if !contextClosed {
			_ = bctx.Close()
		}
	}()

	page, err := bctx.NewPage()
	if err != nil {
		return nil, err
	}

	if err := page.Navigate(url, browser.NavigateOptions{Timeout: r.cfg.NavigationTimeout}); err != nil {
		if !errors.Is(err, browser.ErrNavigationTimeout) {
			return nil, fmt.Errorf("navigating to %s: %w", url, err)
		}
	}

	// Let the page settle briefly so the recording is not a single frame.
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
	}

	// The recording is flushed to disk when the context closes.
	if err := bctx.Close(); err != nil {
		return nil, fmt.Errorf("closing context: %w", err)
	}
	contextClosed = true

	path, err := page.VideoPath()
	if err != nil {
		return nil, fmt.Errorf("resolving video path: %w", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading video file: %w", err)
	}
	if err := os.Remove(path); err != nil {
		r.log.Warn("Failed to delete temporary video file.", zap.String("path", path), zap.Error(err))
	}
	return content, nil
}
