// Package transform holds the stateless HTML, text, and image converters the
// endpoints delegate to. Nothing in here touches a browser or keeps state.
package transform

import (
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/tdewolff/minify/v2"
	minifyhtml "github.com/tdewolff/minify/v2/html"
)

var htmlMinifier = func() *minify.M {
	m := minify.New()
	m.AddFunc("text/html", minifyhtml.Minify)
	return m
}()

// MinifyHTML strips comments and collapses unnecessary whitespace.
func MinifyHTML(html string) (string, error) {
	out, err := htmlMinifier.String("text/html", html)
	if err != nil {
		return "", fmt.Errorf("minifying html: %w", err)
	}
	return out, nil
}

// ExtractText returns the plain text of an HTML document with scripts and
// styles removed, whitespace collapsed to single spaces, and the result
// trimmed.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

// Readability extracts the main readable article from an HTML document.
// baseURL anchors relative links; it may be empty.
func Readability(html, baseURL string) (title, content string, err error) {
	var base *url.URL
	if baseURL != "" {
		base, err = url.Parse(baseURL)
		if err != nil {
			return "", "", fmt.Errorf("parsing base url: %w", err)
		}
	}
	article, err := readability.FromReader(strings.NewReader(html), base)
	if err != nil {
		return "", "", fmt.Errorf("extracting article: %w", err)
	}
	return article.Title, article.Content, nil
}

// Markdown converts HTML into Markdown, links included.
func Markdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	out, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("converting to markdown: %w", err)
	}
	return out, nil
}
