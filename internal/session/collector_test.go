package session

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mkerring/pagetrace/api/schemas"
)

func noCookies() ([]schemas.Cookie, error) {
	return []schemas.Cookie{}, nil
}

func TestCollectorCorrelatesRequestAndResponse(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t), noCookies)

	req := &fakeRequest{
		url:          "https://example.com/",
		method:       "GET",
		resourceType: "document",
		headers:      map[string]string{"accept": "text/html"},
		timing:       map[string]float64{"startTime": 1.0},
	}
	c.OnRequest(req)
	c.OnResponse(&fakeResponse{
		url:     "https://example.com/",
		status:  200,
		headers: map[string]string{"content-type": "text/html"},
		text:    "<html></html>",
		server:  "93.184.216.34:443",
		req:     req,
	})

	events, logs, downloads := c.Drain()
	require.Len(t, events, 2)
	assert.Empty(t, logs)
	assert.Empty(t, downloads)

	request, response := events[0], events[1]
	assert.Equal(t, schemas.DirectionRequest, request.Direction)
	assert.Equal(t, schemas.DirectionResponse, response.Direction)
	assert.NotEmpty(t, request.CorrelationID)
	assert.Equal(t, request.CorrelationID, response.CorrelationID,
		"a response must share the correlation id assigned to its request")

	assert.Equal(t, "GET", request.Method)
	assert.Equal(t, map[string]string{"accept": "text/html"}, request.Headers)
	assert.Equal(t, 200, response.Status)
	assert.Equal(t, map[string]string{"accept": "text/html"}, response.RequestHeaders)
	assert.Equal(t, map[string]string{"content-type": "text/html"}, response.Headers)
	assert.Equal(t, "<html></html>", response.ResponseBody)
	assert.Equal(t, len("<html></html>"), response.ResponseSize)
	assert.False(t, response.BodyIsBase64)
	assert.Equal(t, "93.184.216.34:443", response.ServerAddr)
}

func TestCollectorDistinctRequestsGetDistinctIDs(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t), noCookies)

	c.OnRequest(&fakeRequest{url: "https://example.com/a"})
	c.OnRequest(&fakeRequest{url: "https://example.com/b"})

	events, _, _ := c.Drain()
	require.Len(t, events, 2)
	assert.NotEqual(t, events[0].CorrelationID, events[1].CorrelationID)
}

func TestCollectorResponseWithoutObservedRequest(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t), noCookies)

	// The request was never seen by OnRequest; the response still gets an id.
	c.OnResponse(&fakeResponse{
		url:    "https://example.com/early",
		status: 200,
		req:    &fakeRequest{url: "https://example.com/early"},
	})

	events, _, _ := c.Drain()
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].CorrelationID)
}

func TestCollectorBinaryBodyIsBase64(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t), noCookies)

	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	req := &fakeRequest{url: "https://example.com/logo.png", resourceType: "image"}
	c.OnRequest(req)
	c.OnResponse(&fakeResponse{
		url:     "https://example.com/logo.png",
		status:  200,
		headers: map[string]string{"content-type": "image/png"},
		body:    payload,
		req:     req,
	})

	events, _, _ := c.Drain()
	require.Len(t, events, 2)
	response := events[1]
	assert.True(t, response.BodyIsBase64)
	assert.Equal(t, base64.StdEncoding.EncodeToString(payload), response.ResponseBody)
	assert.Equal(t, len(payload), response.ResponseSize)
}

func TestCollectorJSONBodyIsText(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t), noCookies)

	req := &fakeRequest{url: "https://example.com/api"}
	c.OnRequest(req)
	c.OnResponse(&fakeResponse{
		url:     "https://example.com/api",
		status:  200,
		headers: map[string]string{"content-type": "application/json; charset=utf-8"},
		text:    `{"ok":true}`,
		req:     req,
	})

	events, _, _ := c.Drain()
	response := events[1]
	assert.False(t, response.BodyIsBase64)
	assert.Equal(t, `{"ok":true}`, response.ResponseBody)
}

func TestCollectorDegradesEveryFailingCapture(t *testing.T) {
	boom := errors.New("boom")
	c := NewCollector(zaptest.NewLogger(t), func() ([]schemas.Cookie, error) {
		return nil, boom
	})

	req := &fakeRequest{
		url:        "https://example.com/",
		headersErr: boom,
	}
	c.OnRequest(req)
	c.OnResponse(&fakeResponse{
		url:         "https://example.com/",
		status:      500,
		headersErr:  boom,
		textErr:     boom,
		bodyErr:     boom,
		securityErr: boom,
		serverErr:   boom,
		req:         req,
	})

	events, logs, _ := c.Drain()
	require.Len(t, events, 2, "capture failures must never drop the event itself")

	request, response := events[0], events[1]
	assert.Equal(t, schemas.Unavailable, request.HeadersNote)
	assert.Equal(t, schemas.Unavailable, request.CookiesNote)
	assert.Equal(t, schemas.Unavailable, response.HeadersNote)
	assert.Equal(t, schemas.Unavailable, response.ResponseBody)
	assert.Equal(t, schemas.Unavailable, response.ServerAddr)
	assert.Equal(t, map[string]any{"error": schemas.Unavailable}, response.SecurityDetails)

	// Every degraded field leaves a warning behind.
	assert.NotEmpty(t, logs)
	for _, entry := range logs {
		assert.NotEmpty(t, entry.Warning)
	}
}

func TestCollectorRedirectHop(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t), noCookies)

	origin := &fakeRequest{url: "https://example.com/old"}
	follow := &fakeRequest{url: "https://example.com/new", resourceType: "document", redirectedFrom: origin}

	c.OnRequest(follow)
	c.OnResponse(&fakeResponse{
		url:    "https://example.com/new",
		status: 200,
		server: "1.2.3.4:443",
		req:    follow,
	})

	events, _, _ := c.Drain()
	assert.Equal(t, "https://example.com/old", events[0].RedirectedFrom)

	steps := c.Redirects().Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, 1, steps[0].Step)
	assert.Equal(t, "https://example.com/old", steps[0].From)
	assert.Equal(t, "https://example.com/new", steps[0].To)
}

func TestCollectorConsoleAndPageError(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t), noCookies)

	c.OnConsole("hello from the page")
	c.OnPageError(errors.New("ReferenceError: x is not defined"))
	c.OnPageError(nil)

	_, logs, _ := c.Drain()
	require.Len(t, logs, 2)
	assert.Equal(t, "hello from the page", logs[0].ConsoleMessage)
	assert.Equal(t, "ReferenceError: x is not defined", logs[1].JavascriptError)
}

func TestCollectorDownloadReadsAndDeletes(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t), noCookies)

	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("pdf-bytes"), 0o600))

	c.OnDownload(&fakeDownload{name: "report.pdf", path: path})

	_, _, downloads := c.Drain()
	require.Len(t, downloads, 1)
	assert.Equal(t, "report.pdf", downloads[0].FileName)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("pdf-bytes")), downloads[0].FileContent)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "the temporary download file must be deleted")
}

func TestCollectorDownloadFailureDegrades(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t), noCookies)

	c.OnDownload(&fakeDownload{name: "broken.bin", pathErr: errors.New("interrupted")})

	_, logs, downloads := c.Drain()
	assert.Empty(t, downloads)
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[0].Warning, "broken.bin")
}

func TestCollectorListenerPanicIsIsolated(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t), noCookies)

	assert.NotPanics(t, func() {
		c.OnRequest(&fakeRequest{url: "https://example.com/", headersPanic: true})
	})

	_, logs, _ := c.Drain()
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[len(logs)-1].Error, "request")
}

func TestCollectorDrainReturnsNonNilSlices(t *testing.T) {
	c := NewCollector(zaptest.NewLogger(t), noCookies)

	events, logs, downloads := c.Drain()
	assert.NotNil(t, events)
	assert.NotNil(t, logs)
	assert.NotNil(t, downloads)
}
