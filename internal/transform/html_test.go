package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinifyHTMLStripsCommentsAndWhitespace(t *testing.T) {
	in := `<html>
	<!-- a comment -->
	<body>
		<p>  hello   world  </p>
	</body>
</html>`

	out, err := MinifyHTML(in)
	require.NoError(t, err)
	assert.NotContains(t, out, "a comment")
	assert.NotContains(t, out, "\n\t")
	assert.Contains(t, out, "hello world")
	assert.Less(t, len(out), len(in))
}

func TestMinifyHTMLIsStable(t *testing.T) {
	in := `<p>already minimal</p>`
	once, err := MinifyHTML(in)
	require.NoError(t, err)
	twice, err := MinifyHTML(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestExtractTextDropsScriptsAndStyles(t *testing.T) {
	in := `<html><head>
		<style>p { color: red; }</style>
		<script>console.log("hidden");</script>
	</head><body>
		<h1>Heading</h1>
		<p>First    paragraph.</p>
		<noscript>fallback</noscript>
	</body></html>`

	out, err := ExtractText(in)
	require.NoError(t, err)
	assert.Equal(t, "Heading First paragraph.", out)
}

func TestExtractTextEmptyDocument(t *testing.T) {
	out, err := ExtractText("")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestReadabilityExtractsArticle(t *testing.T) {
	in := `<html><head><title>The Article Title</title></head><body>
		<nav><a href="/">home</a><a href="/about">about</a></nav>
		<article>
			<h1>The Article Title</h1>
			<p>` + strings.Repeat("This is the main content of the article. ", 20) + `</p>
			<p>` + strings.Repeat("It continues with more substantial text here. ", 20) + `</p>
		</article>
		<footer>copyright</footer>
	</body></html>`

	title, content, err := Readability(in, "https://example.com/post")
	require.NoError(t, err)
	assert.Equal(t, "The Article Title", title)
	assert.Contains(t, content, "main content of the article")
}

func TestReadabilityRejectsBadBaseURL(t *testing.T) {
	_, _, err := Readability("<p>x</p>", "://not-a-url")
	assert.Error(t, err)
}

func TestMarkdownConvertsStructure(t *testing.T) {
	in := `<h1>Title</h1><p>Some <strong>bold</strong> text and a <a href="https://example.com">link</a>.</p>`

	out, err := Markdown(in)
	require.NoError(t, err)
	assert.Contains(t, out, "# Title")
	assert.Contains(t, out, "**bold**")
	assert.Contains(t, out, "[link](https://example.com)")
}
