package browser

import (
	"time"

	"github.com/mkerring/pagetrace/api/schemas"
)

// The interfaces below are the capability surface the session layer consumes.
// They wrap the underlying driver so that the orchestrator and its tests never
// depend on engine types directly.

// Launcher opens a browser of a named engine.
type Launcher interface {
	Launch(engine Engine, opts LaunchOptions) (Browser, error)
}

// Browser is a launched browser process.
type Browser interface {
	NewContext(opts ContextOptions) (Context, error)
	Close() error
}

// Context is an isolated browsing context within a browser.
type Context interface {
	NewPage() (Page, error)
	Cookies() ([]schemas.Cookie, error)
	Close() error
}

// Page is a single tab. Event registration must happen before Navigate is
// invoked, or events fired during the initial load are lost.
type Page interface {
	OnRequest(fn func(Request))
	OnResponse(fn func(Response))
	OnConsole(fn func(text string))
	OnPageError(fn func(err error))
	OnDownload(fn func(Download))

	Navigate(url string, opts NavigateOptions) error
	WaitNetworkIdle(timeout time.Duration) error
	URL() string
	Title() (string, error)
	// Attribute reads an attribute off the first element matching selector.
	// The boolean reports whether the element and attribute were present.
	Attribute(selector, name string) (string, bool, error)
	Evaluate(expression string) (any, error)
	// ClickFirstVisible clicks the first visible element matching selector.
	// It reports whether anything was clicked.
	ClickFirstVisible(selector string, timeout time.Duration) (bool, error)
	AddStyle(css string) error
	Screenshot(fullPage bool) ([]byte, error)
	// VideoPath returns the recording's on-disk path. Only valid after the
	// owning context has been closed, which flushes the file.
	VideoPath() (string, error)
}

// Request is one observed outgoing request. Implementations must preserve
// identity: the value returned by Response.Request is the same value the
// OnRequest listener saw, so it can key correlation maps.
type Request interface {
	URL() string
	Method() string
	ResourceType() string
	Headers() (map[string]string, error)
	// Timing returns named timing marks with -1 for unknown offsets.
	Timing() map[string]float64
	RedirectedFrom() Request
	RedirectedTo() Request
}

// Response is one observed incoming response.
type Response interface {
	URL() string
	Status() int
	Headers() (map[string]string, error)
	Text() (string, error)
	Body() ([]byte, error)
	SecurityDetails() (map[string]any, error)
	ServerAddr() (string, error)
	Request() Request
}

// Download is a file the page triggered. Path blocks until the download has
// completed.
type Download interface {
	SuggestedFilename() string
	Path() (string, error)
}

// LaunchOptions configure a browser launch.
type LaunchOptions struct {
	Headless       bool
	ExecutablePath string
	DownloadsPath  string
}

// ContextOptions configure a browsing context.
type ContextOptions struct {
	AcceptDownloads bool
	RecordVideo     *VideoOptions
}

// VideoOptions request session recording into Dir at a fixed frame size.
type VideoOptions struct {
	Dir    string
	Width  int
	Height int
}

// NavigateOptions configure a navigation. A POST with a body is issued as a
// POST navigation; everything else is a GET.
type NavigateOptions struct {
	Method   string
	PostData string
	Timeout  time.Duration
}
