package browser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/mkerring/pagetrace/api/schemas"
)

// ErrNavigationTimeout marks a navigation that ran past its deadline. Sessions
// treat it as a degraded condition, not a failure.
var ErrNavigationTimeout = errors.New("navigation timed out")

// Facade wraps the playwright driver behind the capability interfaces. One
// Facade is created at process start and shared by all sessions; each session
// launches its own browser through it.
type Facade struct {
	pw  *playwright.Playwright
	log *zap.Logger
}

// Install downloads the driver and browser binaries if they are missing.
func Install() error {
	return playwright.Install()
}

// NewFacade starts the playwright driver.
func NewFacade(logger *zap.Logger) (*Facade, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting browser driver: %w", err)
	}
	return &Facade{pw: pw, log: logger.Named("browser")}, nil
}

// Close stops the driver. Any still-open browsers are torn down with it.
func (f *Facade) Close() error {
	return f.pw.Stop()
}

// Launch opens a browser of the named engine.
func (f *Facade) Launch(engine Engine, opts LaunchOptions) (Browser, error) {
	var bt playwright.BrowserType
	switch engine {
	case EngineChromium:
		bt = f.pw.Chromium
	case EngineFirefox:
		bt = f.pw.Firefox
	case EngineWebKit:
		bt = f.pw.WebKit
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEngine, engine)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.ExecutablePath != "" {
		launchOpts.ExecutablePath = playwright.String(opts.ExecutablePath)
	}
	if opts.DownloadsPath != "" {
		launchOpts.DownloadsPath = playwright.String(opts.DownloadsPath)
	}

	b, err := bt.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: launching %s: %v", ErrSessionLaunch, engine, err)
	}
	f.log.Debug("Browser launched.", zap.String("engine", string(engine)))
	return &pwBrowser{browser: b}, nil
}

// -- Wrappers --

type pwBrowser struct {
	browser playwright.Browser
}

func (b *pwBrowser) NewContext(opts ContextOptions) (Context, error) {
	ctxOpts := playwright.BrowserNewContextOptions{
		AcceptDownloads: playwright.Bool(opts.AcceptDownloads),
	}
	if opts.RecordVideo != nil {
		ctxOpts.RecordVideo = &playwright.RecordVideo{
			Dir: opts.RecordVideo.Dir,
			Size: &playwright.Size{
				Width:  opts.RecordVideo.Width,
				Height: opts.RecordVideo.Height,
			},
		}
	}
	ctx, err := b.browser.NewContext(ctxOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: creating context: %v", ErrSessionLaunch, err)
	}
	return &pwContext{ctx: ctx}, nil
}

func (b *pwBrowser) Close() error {
	return b.browser.Close()
}

type pwContext struct {
	ctx playwright.BrowserContext
}

func (c *pwContext) NewPage() (Page, error) {
	page, err := c.ctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("%w: creating page: %v", ErrSessionLaunch, err)
	}
	return newPWPage(page), nil
}

func (c *pwContext) Cookies() ([]schemas.Cookie, error) {
	raw, err := c.ctx.Cookies()
	if err != nil {
		return nil, err
	}
	return convertCookies(raw), nil
}

func (c *pwContext) Close() error {
	return c.ctx.Close()
}

func convertCookies(raw []playwright.Cookie) []schemas.Cookie {
	cookies := make([]schemas.Cookie, 0, len(raw))
	for _, c := range raw {
		cookie := schemas.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != nil {
			cookie.SameSite = string(*c.SameSite)
		}
		cookies = append(cookies, cookie)
	}
	return cookies
}

// pwPage wraps a playwright page. Request wrappers are memoized so that
// wrapper identity mirrors engine object identity; the collector relies on
// this to correlate responses back to their originating requests.
type pwPage struct {
	page     playwright.Page
	requests *requestMemo
}

func newPWPage(page playwright.Page) *pwPage {
	return &pwPage{page: page, requests: newRequestMemo()}
}

func (p *pwPage) OnRequest(fn func(Request)) {
	p.page.OnRequest(func(req playwright.Request) {
		fn(p.requests.wrap(req))
	})
}

func (p *pwPage) OnResponse(fn func(Response)) {
	p.page.OnResponse(func(resp playwright.Response) {
		fn(&pwResponse{resp: resp, requests: p.requests})
	})
}

func (p *pwPage) OnConsole(fn func(string)) {
	p.page.OnConsole(func(msg playwright.ConsoleMessage) {
		fn(msg.Text())
	})
}

func (p *pwPage) OnPageError(fn func(error)) {
	p.page.OnPageError(fn)
}

func (p *pwPage) OnDownload(fn func(Download)) {
	p.page.OnDownload(func(dl playwright.Download) {
		fn(&pwDownload{dl: dl})
	})
}

func (p *pwPage) Navigate(url string, opts NavigateOptions) error {
	target := url
	if strings.EqualFold(opts.Method, "POST") && opts.PostData != "" {
		// The page API has no POST navigation; issue the POST through the
		// context's request capability and then navigate to where it landed,
		// so cookies and redirects from the POST carry over.
		resp, err := p.page.Context().Request().Post(url, playwright.APIRequestContextPostOptions{
			Data: opts.PostData,
		})
		if err != nil {
			return translateTimeout(err)
		}
		target = resp.URL()
	}

	_, err := p.page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(opts.Timeout.Milliseconds())),
	})
	return translateTimeout(err)
}

func (p *pwPage) WaitNetworkIdle(timeout time.Duration) error {
	err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return translateTimeout(err)
}

func translateTimeout(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrNavigationTimeout, err)
	}
	return err
}

func (p *pwPage) URL() string {
	return p.page.URL()
}

func (p *pwPage) Title() (string, error) {
	return p.page.Title()
}

func (p *pwPage) Attribute(selector, name string) (string, bool, error) {
	loc := p.page.Locator(selector).First()
	count, err := loc.Count()
	if err != nil {
		return "", false, err
	}
	if count == 0 {
		return "", false, nil
	}
	val, err := loc.GetAttribute(name)
	if err != nil {
		return "", false, err
	}
	return val, val != "", nil
}

func (p *pwPage) Evaluate(expression string) (any, error) {
	return p.page.Evaluate(expression)
}

func (p *pwPage) ClickFirstVisible(selector string, timeout time.Duration) (bool, error) {
	loc := p.page.Locator(selector)
	count, err := loc.Count()
	if err != nil {
		return false, err
	}
	for i := 0; i < count; i++ {
		el := loc.Nth(i)
		visible, err := el.IsVisible()
		if err != nil || !visible {
			continue
		}
		if err := el.Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(float64(timeout.Milliseconds())),
		}); err == nil {
			return true, nil
		}
	}
	return false, nil
}

func (p *pwPage) AddStyle(css string) error {
	_, err := p.page.AddStyleTag(playwright.PageAddStyleTagOptions{
		Content: playwright.String(css),
	})
	return err
}

func (p *pwPage) Screenshot(fullPage bool) ([]byte, error) {
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
	})
}

func (p *pwPage) VideoPath() (string, error) {
	video := p.page.Video()
	if video == nil {
		return "", errors.New("page has no video recording")
	}
	return video.Path()
}

// pwRequest wraps one playwright request.
type pwRequest struct {
	req      playwright.Request
	requests *requestMemo
}

func (r *pwRequest) URL() string          { return r.req.URL() }
func (r *pwRequest) Method() string       { return r.req.Method() }
func (r *pwRequest) ResourceType() string { return r.req.ResourceType() }

func (r *pwRequest) Headers() (map[string]string, error) {
	return r.req.AllHeaders()
}

func (r *pwRequest) Timing() map[string]float64 {
	t := r.req.Timing()
	if t == nil {
		return nil
	}
	return map[string]float64{
		"startTime":             t.StartTime,
		"domainLookupStart":     t.DomainLookupStart,
		"domainLookupEnd":       t.DomainLookupEnd,
		"connectStart":          t.ConnectStart,
		"secureConnectionStart": t.SecureConnectionStart,
		"connectEnd":            t.ConnectEnd,
		"requestStart":          t.RequestStart,
		"responseStart":         t.ResponseStart,
		"responseEnd":           t.ResponseEnd,
	}
}

func (r *pwRequest) RedirectedFrom() Request {
	from := r.req.RedirectedFrom()
	if from == nil {
		return nil
	}
	return r.requests.wrap(from)
}

func (r *pwRequest) RedirectedTo() Request {
	to := r.req.RedirectedTo()
	if to == nil {
		return nil
	}
	return r.requests.wrap(to)
}

// pwResponse wraps one playwright response.
type pwResponse struct {
	resp     playwright.Response
	requests *requestMemo
}

func (r *pwResponse) URL() string { return r.resp.URL() }
func (r *pwResponse) Status() int { return r.resp.Status() }

func (r *pwResponse) Headers() (map[string]string, error) {
	return r.resp.AllHeaders()
}

func (r *pwResponse) Text() (string, error) {
	return r.resp.Text()
}

func (r *pwResponse) Body() ([]byte, error) {
	return r.resp.Body()
}

func (r *pwResponse) SecurityDetails() (map[string]any, error) {
	details, err := r.resp.SecurityDetails()
	if err != nil {
		return nil, err
	}
	if details == nil {
		return nil, nil
	}
	out := make(map[string]any)
	if details.Protocol != nil {
		out["protocol"] = *details.Protocol
	}
	if details.Issuer != nil {
		out["issuer"] = *details.Issuer
	}
	if details.SubjectName != nil {
		out["subjectName"] = *details.SubjectName
	}
	if details.ValidFrom != nil {
		out["validFrom"] = *details.ValidFrom
	}
	if details.ValidTo != nil {
		out["validTo"] = *details.ValidTo
	}
	return out, nil
}

func (r *pwResponse) ServerAddr() (string, error) {
	addr, err := r.resp.ServerAddr()
	if err != nil {
		return "", err
	}
	if addr == nil {
		return "", nil
	}
	return addr.IpAddress + ":" + strconv.Itoa(addr.Port), nil
}

func (r *pwResponse) Request() Request {
	return r.requests.wrap(r.resp.Request())
}

// pwDownload wraps one playwright download.
type pwDownload struct {
	dl playwright.Download
}

func (d *pwDownload) SuggestedFilename() string {
	return d.dl.SuggestedFilename()
}

func (d *pwDownload) Path() (string, error) {
	return d.dl.Path()
}
