package api

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkerring/pagetrace/api/schemas"
)

func TestTransformEndpointsRequireHTML(t *testing.T) {
	s, _ := newTestServer(t, nil)

	for _, path := range []string{"/minimize", "/extract_text", "/reader", "/markdown"} {
		t.Run(path, func(t *testing.T) {
			rec := postForm(s, path, url.Values{})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "No HTML content provided")
		})
	}
}

func TestMinimize(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := postForm(s, "/minimize", url.Values{"html": {"<p>  spaced   out  </p>\n<!-- gone -->"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var result schemas.MinifiedHTML
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotContains(t, result.MinifiedHTML, "gone")
	assert.Contains(t, result.MinifiedHTML, "spaced out")
}

func TestExtractText(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := postForm(s, "/extract_text", url.Values{"html": {"<body><script>x()</script><p>visible  text</p></body>"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var result schemas.ExtractedText
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "visible text", result.Text)
}

func TestExtractTextIsCachedByContent(t *testing.T) {
	s, _ := newTestServer(t, nil)

	form := url.Values{"html": {"<p>same content</p>"}}
	first := postForm(s, "/extract_text", form)
	second := postForm(s, "/extract_text", form)

	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, s.store.Len(), "identical input must reuse one cache entry")
}

func TestReader(t *testing.T) {
	s, _ := newTestServer(t, nil)

	html := `<html><head><title>Story Title</title></head><body><article><h1>Story Title</h1>`
	for i := 0; i < 20; i++ {
		html += `<p>A long paragraph of real article body text to satisfy the extractor heuristics.</p>`
	}
	html += `</article></body></html>`

	rec := postForm(s, "/reader", url.Values{"html": {html}, "url": {"https://example.com/story"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var result schemas.ReaderArticle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Story Title", result.Title)
	assert.Contains(t, result.Content, "article body text")
}

func TestMarkdown(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := postForm(s, "/markdown", url.Values{"html": {`<h2>Section</h2><p>With a <a href="https://example.com">link</a>.</p>`}})
	require.Equal(t, http.StatusOK, rec.Code)

	var result schemas.MarkdownDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Contains(t, result.Markdown, "## Section")
	assert.Contains(t, result.Markdown, "[link](https://example.com)")
}
