package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mkerring/pagetrace/api/schemas"
	"github.com/mkerring/pagetrace/internal/browser"
	"github.com/mkerring/pagetrace/internal/config"
	"github.com/mkerring/pagetrace/internal/transform"
)

// State tracks where a session is in its lifecycle. Transitions are logged;
// handles are guaranteed released before Completed or Failed is reached.
type State string

const (
	StateInitializing State = "initializing"
	StateNavigating   State = "navigating"
	StateCapturing    State = "capturing"
	StateFinalizing   State = "finalizing"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

const (
	titleUnavailable = "Title unavailable due to navigation"
	metaUnavailable  = "Meta description unavailable due to navigation"
	metaMissing      = "No Meta Description"
)

// Target identifies what a session navigates to.
type Target struct {
	URL      string
	Method   string
	PostData string
}

// Options tune one session run.
type Options struct {
	CookieBanner       bool
	RecordVideo        bool
	FullPageScreenshot bool
	// NavigationTimeout bounds both the navigation and the post-banner idle
	// wait; zero falls back to the configured default.
	NavigationTimeout time.Duration
	ThumbnailSize     int
	JPEGQuality       int
}

// Runner owns browse-session orchestration. It is safe for concurrent use;
// every Run call drives an independent browser/context/page triple.
type Runner struct {
	launcher browser.Launcher
	cfg      config.BrowserConfig
	log      *zap.Logger
}

// NewRunner creates a Runner on top of a launcher.
func NewRunner(launcher browser.Launcher, cfg config.BrowserConfig, logger *zap.Logger) *Runner {
	return &Runner{launcher: launcher, cfg: cfg, log: logger.Named("session")}
}

// Run drives one full browse session and assembles its snapshot.
//
// Only two classes of error are fatal: an unsupported engine name (checked
// before any resource is allocated) and browser/context/page acquisition
// failures. Everything past acquisition degrades: the failing capture is
// replaced with a sentinel, a log entry is recorded, and the session carries
// on to produce a best-effort snapshot.
func (r *Runner) Run(ctx context.Context, target Target, engineName string, opts Options) (*schemas.Snapshot, error) {
	engine, err := browser.ResolveEngine(engineName)
	if err != nil {
		return nil, err
	}

	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = r.cfg.NavigationTimeout
	}

	s := &session{
		runner: r,
		log: r.log.With(
			zap.String("engine", string(engine)),
			zap.String("url", target.URL),
		),
		state: StateInitializing,
	}
	snapshot, err := s.run(ctx, target, engine, opts)
	if err != nil {
		s.setState(StateFailed)
		return nil, err
	}
	s.setState(StateCompleted)
	return snapshot, nil
}

// session is the per-run mutable state. It exclusively owns its browser,
// context, and page handles for its entire lifetime.
type session struct {
	runner *Runner
	log    *zap.Logger
	state  State

	browser browser.Browser
	bctx    browser.Context
	page    browser.Page
}

func (s *session) setState(state State) {
	s.state = state
	s.log.Debug("Session state changed.", zap.String("state", string(state)))
}

func (s *session) run(ctx context.Context, target Target, engine browser.Engine, opts Options) (*schemas.Snapshot, error) {
	started := time.Now()

	// Acquire browser, context, page in that order. closedEarly flips once the
	// normal teardown has run, so the deferred cleanup only fires on the
	// error paths that follow acquisition.
	closedEarly := false
	defer func() {
		if closedEarly {
			return
		}
		if s.bctx != nil {
			_ = s.bctx.Close()
		}
		if s.browser != nil {
			_ = s.browser.Close()
		}
	}()

	var err error
	s.browser, err = s.runner.launcher.Launch(engine, browser.LaunchOptions{
		Headless:       s.runner.cfg.Headless,
		ExecutablePath: s.runner.cfg.ExecutablePath,
		DownloadsPath:  s.runner.cfg.DownloadDir,
	})
	if err != nil {
		return nil, err
	}

	ctxOpts := browser.ContextOptions{AcceptDownloads: true}
	if opts.RecordVideo {
		ctxOpts.RecordVideo = &browser.VideoOptions{
			Dir:    s.runner.cfg.VideoDir,
			Width:  s.runner.cfg.VideoWidth,
			Height: s.runner.cfg.VideoHeight,
		}
	}
	s.bctx, err = s.browser.NewContext(ctxOpts)
	if err != nil {
		return nil, err
	}

	s.page, err = s.bctx.NewPage()
	if err != nil {
		return nil, err
	}

	// Listener registration must complete before navigation begins.
	collector := NewCollector(s.log, s.bctx.Cookies)
	collector.Register(s.page)

	s.setState(StateNavigating)
	s.navigate(collector, target, opts)

	if opts.CookieBanner {
		outcome := DismissCookieBanners(s.page, s.log)
		collector.AppendConsole(fmt.Sprintf("Cookie banner pass: %s", outcome))
		if err := s.page.WaitNetworkIdle(opts.NavigationTimeout); err != nil {
			if errors.Is(err, browser.ErrNavigationTimeout) {
				collector.AppendConsole("Navigation timed out")
			} else {
				collector.Warnf("Post-banner wait failed: %v", err)
			}
		}
	}

	s.setState(StateCapturing)
	snapshot := &schemas.Snapshot{}
	s.capturePageMetadata(collector, snapshot)
	s.capturePerformance(collector, snapshot)
	s.captureCookies(collector, snapshot)
	s.captureScreenshot(collector, snapshot, opts)

	s.setState(StateFinalizing)
	// Closing the context flushes the video file; the browser follows. Both
	// happen before the snapshot is assembled, on this path and the error
	// paths alike.
	if err := s.bctx.Close(); err != nil {
		collector.Warnf("Failed to close browser context: %v", err)
	}
	if opts.RecordVideo {
		s.captureVideo(collector, snapshot)
	}
	if err := s.browser.Close(); err != nil {
		collector.Warnf("Failed to close browser: %v", err)
	}
	closedEarly = true

	snapshot.NetworkEvents, snapshot.Logs, snapshot.DownloadedFiles = collector.Drain()
	snapshot.Redirects = collector.Redirects().Steps()

	s.log.Info("Browse session finished.",
		zap.Duration("took", time.Since(started)),
		zap.Int("network_events", len(snapshot.NetworkEvents)),
		zap.Int("redirects", len(snapshot.Redirects)),
	)
	return snapshot, nil
}

// navigate performs the initial navigation. A timeout degrades to a console
// log entry; any other navigation failure degrades to an error entry. The
// captures that follow run against whatever DOM state exists.
func (s *session) navigate(collector *Collector, target Target, opts Options) {
	err := s.page.Navigate(target.URL, browser.NavigateOptions{
		Method:   target.Method,
		PostData: target.PostData,
		Timeout:  opts.NavigationTimeout,
	})
	if err == nil {
		return
	}
	if errors.Is(err, browser.ErrNavigationTimeout) {
		collector.AppendConsole("Navigation timed out")
		return
	}
	collector.AppendError(fmt.Sprintf("Navigation failed: %v", err))
}

// capturePageMetadata reads title and meta description. A page torn down by a
// subsequent navigation makes these reads fail; that race is inherent to
// event-driven pages, so the fields degrade to explicit sentinels.
func (s *session) capturePageMetadata(collector *Collector, snapshot *schemas.Snapshot) {
	title, err := s.page.Title()
	if err != nil {
		snapshot.PageTitle = titleUnavailable
		snapshot.MetaDescription = metaUnavailable
		collector.Warnf("Failed to read page metadata: %v", err)
		return
	}
	snapshot.PageTitle = title

	meta, found, err := s.page.Attribute(`meta[name="description"]`, "content")
	switch {
	case err != nil:
		snapshot.MetaDescription = metaUnavailable
		collector.Warnf("Failed to read meta description: %v", err)
	case !found:
		snapshot.MetaDescription = metaMissing
	default:
		snapshot.MetaDescription = meta
	}
}

func (s *session) capturePerformance(collector *Collector, snapshot *schemas.Snapshot) {
	snapshot.Performance.PerformanceTiming = map[string]float64{}

	raw, err := s.page.Evaluate(`JSON.parse(JSON.stringify(window.performance.timing))`)
	if err != nil {
		collector.Warnf("Failed to capture performance timing: %v", err)
		return
	}
	timing, ok := raw.(map[string]any)
	if !ok {
		collector.Warnf("Unexpected performance timing shape: %T", raw)
		return
	}
	for mark, value := range timing {
		switch v := value.(type) {
		case float64:
			snapshot.Performance.PerformanceTiming[mark] = v
		case int:
			snapshot.Performance.PerformanceTiming[mark] = float64(v)
		}
	}
}

func (s *session) captureCookies(collector *Collector, snapshot *schemas.Snapshot) {
	cookies, err := s.bctx.Cookies()
	if err != nil {
		snapshot.Cookies = []schemas.Cookie{}
		collector.Warnf("Failed to fetch cookies: %v", err)
		return
	}
	snapshot.Cookies = cookies
}

// captureScreenshot takes the raw screenshot and runs it through the image
// pipeline: a full-size JPEG re-encode plus an aspect-preserving thumbnail.
func (s *session) captureScreenshot(collector *Collector, snapshot *schemas.Snapshot, opts Options) {
	raw, err := s.page.Screenshot(opts.FullPageScreenshot)
	if err != nil {
		collector.Warnf("Failed to capture screenshot: %v", err)
		return
	}

	optimized, err := transform.OptimizeJPEG(raw, 0, 0, opts.JPEGQuality)
	if err != nil {
		collector.Warnf("Failed to optimize screenshot: %v", err)
		optimized = raw
	}
	snapshot.Screenshot = base64.StdEncoding.EncodeToString(optimized)

	thumbnail, err := transform.Thumbnail(raw, opts.ThumbnailSize, opts.JPEGQuality)
	if err != nil {
		collector.Warnf("Failed to build thumbnail: %v", err)
		return
	}
	snapshot.Thumbnail = base64.StdEncoding.EncodeToString(thumbnail)
}

// captureVideo reads the flushed recording into memory, encodes it, and
// deletes the temporary file. Only valid after the context is closed.
func (s *session) captureVideo(collector *Collector, snapshot *schemas.Snapshot) {
	path, err := s.page.VideoPath()
	if err != nil {
		collector.Warnf("Failed to resolve session video: %v", err)
		return
	}
	content, err := os.ReadFile(path)
	if err != nil {
		collector.Warnf("Failed to read session video: %v", err)
		return
	}
	if err := os.Remove(path); err != nil {
		s.log.Warn("Failed to delete temporary video file.", zap.String("path", path), zap.Error(err))
	}
	snapshot.Video = base64.StdEncoding.EncodeToString(content)
}
