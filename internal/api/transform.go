package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkerring/pagetrace/api/schemas"
	"github.com/mkerring/pagetrace/internal/cache"
	"github.com/mkerring/pagetrace/internal/transform"
)

// The transform endpoints are thin glue over the stateless converters. The
// minify and extract-text variants cache by content hash; reader and markdown
// do not.

func (s *Server) handleMinimize(c *gin.Context) {
	html, ok := requireHTMLForm(c)
	if !ok {
		return
	}

	key := cache.ContentFingerprint("minimize:" + html)
	if payload, ok := s.store.Get(key); ok {
		c.Data(http.StatusOK, "application/json", payload)
		return
	}

	minified, err := transform.MinifyHTML(html)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	s.respondCached(c, key, schemas.MinifiedHTML{MinifiedHTML: minified})
}

func (s *Server) handleExtractText(c *gin.Context) {
	html, ok := requireHTMLForm(c)
	if !ok {
		return
	}

	key := cache.ContentFingerprint("extract_text:" + html)
	if payload, ok := s.store.Get(key); ok {
		c.Data(http.StatusOK, "application/json", payload)
		return
	}

	text, err := transform.ExtractText(html)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	s.respondCached(c, key, schemas.ExtractedText{Text: text})
}

func (s *Server) handleReader(c *gin.Context) {
	html, ok := requireHTMLForm(c)
	if !ok {
		return
	}

	title, content, err := transform.Readability(html, c.PostForm("url"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, schemas.ReaderArticle{Title: title, Content: content})
}

func (s *Server) handleMarkdown(c *gin.Context) {
	html, ok := requireHTMLForm(c)
	if !ok {
		return
	}

	markdown, err := transform.Markdown(html)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, schemas.MarkdownDocument{Markdown: markdown})
}

func requireHTMLForm(c *gin.Context) (string, bool) {
	html := c.PostForm("html")
	if html == "" {
		abortWithError(c, http.StatusBadRequest, "No HTML content provided")
		return "", false
	}
	return html, true
}

func (s *Server) respondCached(c *gin.Context, key string, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.store.Put(key, payload, s.cfg.Cache.TTL)
	c.Data(http.StatusOK, "application/json", payload)
}
