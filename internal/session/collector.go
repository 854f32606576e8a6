package session

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkerring/pagetrace/api/schemas"
	"github.com/mkerring/pagetrace/internal/browser"
)

// Collector subscribes to a page's request, response, console, pageerror and
// download events and accumulates them into ordered, append-only sequences.
//
// The central invariant of the whole session layer lives here: any single
// capture failure (headers, cookies, body, security details, server address)
// degrades that one field to the Unavailable sentinel and records a warning;
// it never aborts the session. Console and pageerror handling never surfaces
// failures at all.
type Collector struct {
	log *zap.Logger
	// cookies snapshots the owning context's cookie jar, captured per event
	// and independently fallible.
	cookies func() ([]schemas.Cookie, error)

	mu          sync.Mutex
	correlation map[browser.Request]string
	events      []schemas.NetworkEvent
	logs        []schemas.LogEntry
	downloads   []schemas.DownloadedFile

	redirects *RedirectTracker
}

// NewCollector creates a collector for one session.
func NewCollector(logger *zap.Logger, cookies func() ([]schemas.Cookie, error)) *Collector {
	return &Collector{
		log:         logger.Named("collector"),
		cookies:     cookies,
		correlation: make(map[browser.Request]string),
		events:      make([]schemas.NetworkEvent, 0),
		logs:        make([]schemas.LogEntry, 0),
		downloads:   make([]schemas.DownloadedFile, 0),
		redirects:   NewRedirectTracker(),
	}
}

// Register attaches all listeners to the page. Must be called before
// navigation starts, or events fired during the initial load are lost.
func (c *Collector) Register(page browser.Page) {
	page.OnRequest(c.OnRequest)
	page.OnResponse(c.OnResponse)
	page.OnConsole(c.OnConsole)
	page.OnPageError(c.OnPageError)
	page.OnDownload(c.OnDownload)
}

// OnRequest records one outgoing request and assigns its correlation id.
func (c *Collector) OnRequest(req browser.Request) {
	defer c.isolate("request")()

	event := schemas.NetworkEvent{
		CorrelationID: uuid.NewString(),
		Direction:     schemas.DirectionRequest,
		URL:           req.URL(),
		Method:        req.Method(),
		ResourceType:  req.ResourceType(),
		Timing:        timingOrEmpty(req),
	}

	headers, err := req.Headers()
	if err != nil {
		event.HeadersNote = schemas.Unavailable
		c.warnf("Failed to fetch request headers: %v", err)
	} else {
		event.Headers = headers
	}

	cookies, err := c.cookies()
	if err != nil {
		event.CookiesNote = schemas.Unavailable
		c.warnf("Failed to fetch cookies: %v", err)
	} else {
		event.Cookies = cookies
	}

	if from := req.RedirectedFrom(); from != nil {
		event.RedirectedFrom = from.URL()
	}
	if to := req.RedirectedTo(); to != nil {
		event.RedirectedTo = to.URL()
	}

	c.mu.Lock()
	c.correlation[req] = event.CorrelationID
	c.events = append(c.events, event)
	c.mu.Unlock()
}

// OnResponse records one incoming response, joined to its originating request
// via the correlation id assigned in OnRequest. When the originating request
// carries a redirected-from relation, the hop is handed to the redirect
// tracker.
func (c *Collector) OnResponse(resp browser.Response) {
	defer c.isolate("response")()

	req := resp.Request()

	c.mu.Lock()
	correlationID, ok := c.correlation[req]
	c.mu.Unlock()
	if !ok {
		// Response for a request observed before our listener attached.
		correlationID = uuid.NewString()
	}

	event := schemas.NetworkEvent{
		CorrelationID: correlationID,
		Direction:     schemas.DirectionResponse,
		URL:           resp.URL(),
		Status:        resp.Status(),
		ResourceType:  req.ResourceType(),
		Timing:        timingOrEmpty(req),
	}

	requestHeaders, err := req.Headers()
	if err != nil {
		event.HeadersNote = schemas.Unavailable
		c.warnf("Failed to fetch request headers: %v", err)
	} else {
		event.RequestHeaders = requestHeaders
	}

	responseHeaders, err := resp.Headers()
	if err != nil {
		event.HeadersNote = schemas.Unavailable
		c.warnf("Failed to fetch response headers: %v", err)
	} else {
		event.Headers = responseHeaders
	}

	c.captureBody(&event, resp, responseHeaders)

	cookies, err := c.cookies()
	if err != nil {
		event.CookiesNote = schemas.Unavailable
		c.warnf("Failed to fetch cookies: %v", err)
	} else {
		event.Cookies = cookies
	}

	security, err := resp.SecurityDetails()
	if err != nil {
		event.SecurityDetails = map[string]any{"error": schemas.Unavailable}
		c.warnf("Failed to fetch security details: %v", err)
	} else {
		event.SecurityDetails = security
	}

	server, err := resp.ServerAddr()
	if err != nil {
		event.ServerAddr = schemas.Unavailable
		c.warnf("Failed to fetch server address: %v", err)
	} else {
		event.ServerAddr = server
	}

	var redirectedFrom browser.Request
	if redirectedFrom = req.RedirectedFrom(); redirectedFrom != nil {
		event.RedirectedFrom = redirectedFrom.URL()
	}
	if to := req.RedirectedTo(); to != nil {
		event.RedirectedTo = to.URL()
	}

	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	if redirectedFrom != nil {
		c.redirects.Observe(redirectedFrom.URL(), req.URL(), resp.Status(), req.ResourceType(), event.ServerAddr)
	}
}

// captureBody classifies the body as text when the content type contains
// "text" or "json", otherwise captures it base64-encoded. A failed capture
// degrades to the sentinel.
func (c *Collector) captureBody(event *schemas.NetworkEvent, resp browser.Response, headers map[string]string) {
	contentType := ""
	if headers != nil {
		contentType = strings.ToLower(headers["content-type"])
	}

	if strings.Contains(contentType, "text") || strings.Contains(contentType, "json") {
		text, err := resp.Text()
		if err == nil {
			event.ResponseBody = text
			event.ResponseSize = len(text)
			return
		}
		c.warnf("Failed to fetch response body: %v", err)
		event.ResponseBody = schemas.Unavailable
		return
	}

	body, err := resp.Body()
	if err != nil {
		c.warnf("Failed to fetch response body: %v", err)
		event.ResponseBody = schemas.Unavailable
		return
	}
	event.ResponseBody = base64.StdEncoding.EncodeToString(body)
	event.ResponseSize = len(body)
	event.BodyIsBase64 = true
}

// OnConsole appends a console message. It must never destabilize the session,
// so there is nothing here that can fail.
func (c *Collector) OnConsole(text string) {
	c.mu.Lock()
	c.logs = append(c.logs, schemas.LogEntry{ConsoleMessage: text})
	c.mu.Unlock()
}

// OnPageError appends an uncaught javascript error.
func (c *Collector) OnPageError(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.logs = append(c.logs, schemas.LogEntry{JavascriptError: err.Error()})
	c.mu.Unlock()
}

// OnDownload blocks until the download completes, reads the file into memory,
// and deletes the temporary file. The session never retains a filesystem
// handle past snapshot assembly.
func (c *Collector) OnDownload(dl browser.Download) {
	defer c.isolate("download")()

	path, err := dl.Path()
	if err != nil {
		c.warnf("Failed to resolve download %q: %v", dl.SuggestedFilename(), err)
		return
	}
	content, err := os.ReadFile(path)
	if err != nil {
		c.warnf("Failed to read download %q: %v", dl.SuggestedFilename(), err)
		return
	}
	if err := os.Remove(path); err != nil {
		c.log.Warn("Failed to delete temporary download file.", zap.String("path", path), zap.Error(err))
	}

	c.mu.Lock()
	c.downloads = append(c.downloads, schemas.DownloadedFile{
		FileName:    dl.SuggestedFilename(),
		FileContent: base64.StdEncoding.EncodeToString(content),
	})
	c.mu.Unlock()
}

// Warnf appends a warning log entry. Used by the orchestrator for degraded
// captures outside the listeners.
func (c *Collector) Warnf(format string, args ...any) {
	c.warnf(format, args...)
}

// AppendConsole records an orchestrator-level message in the console stream,
// such as the navigation-timeout notice.
func (c *Collector) AppendConsole(text string) {
	c.OnConsole(text)
}

// AppendError records an error-tagged log entry.
func (c *Collector) AppendError(text string) {
	c.mu.Lock()
	c.logs = append(c.logs, schemas.LogEntry{Error: text})
	c.mu.Unlock()
}

func (c *Collector) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.log.Warn(msg)
	c.mu.Lock()
	c.logs = append(c.logs, schemas.LogEntry{Warning: msg})
	c.mu.Unlock()
}

// isolate converts a listener panic into an error log entry. Listener failures
// must never escape into the engine's event dispatcher.
func (c *Collector) isolate(listener string) func() {
	return func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("An error occurred while logging the %s: %v", listener, r)
			c.log.Error(msg)
			c.mu.Lock()
			c.logs = append(c.logs, schemas.LogEntry{Error: msg})
			c.mu.Unlock()
		}
	}
}

// Redirects exposes the session's redirect tracker.
func (c *Collector) Redirects() *RedirectTracker {
	return c.redirects
}

// Drain returns the accumulated sequences. Within each sequence, order equals
// arrival order of the underlying events.
func (c *Collector) Drain() (events []schemas.NetworkEvent, logs []schemas.LogEntry, downloads []schemas.DownloadedFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	events = make([]schemas.NetworkEvent, len(c.events))
	copy(events, c.events)
	logs = make([]schemas.LogEntry, len(c.logs))
	copy(logs, c.logs)
	downloads = make([]schemas.DownloadedFile, len(c.downloads))
	copy(downloads, c.downloads)
	return events, logs, downloads
}

func timingOrEmpty(req browser.Request) map[string]float64 {
	if t := req.Timing(); t != nil {
		return t
	}
	return map[string]float64{}
}
