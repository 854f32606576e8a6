package session

import (
	"time"

	"github.com/mkerring/pagetrace/api/schemas"
	"github.com/mkerring/pagetrace/internal/browser"
)

// In-memory stand-ins for the browser capability surface. Zero values behave
// like a healthy page with nothing on it; tests flip individual error fields
// to exercise the degradation paths.

type fakeRequest struct {
	url          string
	method       string
	resourceType string
	headers      map[string]string
	headersErr   error
	headersPanic bool
	timing       map[string]float64

	redirectedFrom browser.Request
	redirectedTo   browser.Request
}

func (r *fakeRequest) URL() string          { return r.url }
func (r *fakeRequest) Method() string       { return r.method }
func (r *fakeRequest) ResourceType() string { return r.resourceType }
func (r *fakeRequest) Headers() (map[string]string, error) {
	if r.headersPanic {
		panic("headers exploded")
	}
	return r.headers, r.headersErr
}
func (r *fakeRequest) Timing() map[string]float64    { return r.timing }
func (r *fakeRequest) RedirectedFrom() browser.Request { return r.redirectedFrom }
func (r *fakeRequest) RedirectedTo() browser.Request   { return r.redirectedTo }

type fakeResponse struct {
	url        string
	status     int
	headers    map[string]string
	headersErr error

	text    string
	textErr error
	body    []byte
	bodyErr error

	security    map[string]any
	securityErr error
	server      string
	serverErr   error

	req browser.Request
}

func (r *fakeResponse) URL() string                            { return r.url }
func (r *fakeResponse) Status() int                            { return r.status }
func (r *fakeResponse) Headers() (map[string]string, error)    { return r.headers, r.headersErr }
func (r *fakeResponse) Text() (string, error)                  { return r.text, r.textErr }
func (r *fakeResponse) Body() ([]byte, error)                  { return r.body, r.bodyErr }
func (r *fakeResponse) SecurityDetails() (map[string]any, error) {
	return r.security, r.securityErr
}
func (r *fakeResponse) ServerAddr() (string, error) { return r.server, r.serverErr }
func (r *fakeResponse) Request() browser.Request    { return r.req }

type fakeDownload struct {
	name    string
	path    string
	pathErr error
}

func (d *fakeDownload) SuggestedFilename() string { return d.name }
func (d *fakeDownload) Path() (string, error)     { return d.path, d.pathErr }

type fakePage struct {
	onRequest  func(browser.Request)
	onResponse func(browser.Response)
	onConsole  func(string)
	onPageErr  func(error)
	onDownload func(browser.Download)

	navigateErr  error
	navigations  []string
	waitIdleErr  error
	url          string
	title        string
	titleErr     error
	attributes   map[string]string
	attributeErr error
	evaluate     func(expression string) (any, error)
	clickResult  map[string]bool
	clickErr     error
	addedStyles  []string
	addStyleErr  error
	screenshot   []byte
	shotErr      error
	videoPath    string
	videoErr     error
}

func (p *fakePage) OnRequest(fn func(browser.Request))   { p.onRequest = fn }
func (p *fakePage) OnResponse(fn func(browser.Response)) { p.onResponse = fn }
func (p *fakePage) OnConsole(fn func(string))            { p.onConsole = fn }
func (p *fakePage) OnPageError(fn func(error))           { p.onPageErr = fn }
func (p *fakePage) OnDownload(fn func(browser.Download)) { p.onDownload = fn }

func (p *fakePage) Navigate(url string, opts browser.NavigateOptions) error {
	p.navigations = append(p.navigations, url)
	return p.navigateErr
}
func (p *fakePage) WaitNetworkIdle(timeout time.Duration) error { return p.waitIdleErr }
func (p *fakePage) URL() string                                 { return p.url }
func (p *fakePage) Title() (string, error)                      { return p.title, p.titleErr }
func (p *fakePage) Attribute(selector, name string) (string, bool, error) {
	if p.attributeErr != nil {
		return "", false, p.attributeErr
	}
	value, ok := p.attributes[selector]
	return value, ok, nil
}
func (p *fakePage) Evaluate(expression string) (any, error) {
	if p.evaluate != nil {
		return p.evaluate(expression)
	}
	return nil, nil
}
func (p *fakePage) ClickFirstVisible(selector string, timeout time.Duration) (bool, error) {
	if p.clickErr != nil {
		return false, p.clickErr
	}
	return p.clickResult[selector], nil
}
func (p *fakePage) AddStyle(css string) error {
	p.addedStyles = append(p.addedStyles, css)
	return p.addStyleErr
}
func (p *fakePage) Screenshot(fullPage bool) ([]byte, error) { return p.screenshot, p.shotErr }
func (p *fakePage) VideoPath() (string, error)               { return p.videoPath, p.videoErr }

type fakeContext struct {
	page       *fakePage
	pageErr    error
	cookies    []schemas.Cookie
	cookiesErr error
	closed     bool
}

func (c *fakeContext) NewPage() (browser.Page, error) {
	if c.pageErr != nil {
		return nil, c.pageErr
	}
	return c.page, nil
}
func (c *fakeContext) Cookies() ([]schemas.Cookie, error) { return c.cookies, c.cookiesErr }
func (c *fakeContext) Close() error {
	c.closed = true
	return nil
}

type fakeBrowser struct {
	ctx    *fakeContext
	ctxErr error
	closed bool
}

func (b *fakeBrowser) NewContext(opts browser.ContextOptions) (browser.Context, error) {
	if b.ctxErr != nil {
		return nil, b.ctxErr
	}
	return b.ctx, nil
}
func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

type fakeLauncher struct {
	browser  *fakeBrowser
	err      error
	launches int
}

func (l *fakeLauncher) Launch(engine browser.Engine, opts browser.LaunchOptions) (browser.Browser, error) {
	l.launches++
	if l.err != nil {
		return nil, l.err
	}
	return l.browser, nil
}
