package schemas

// -- HTTP Response Schemas --

// ErrorResponse is the structured body returned for fatal and validation errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ScreenshotResult is the /screenshot endpoint response. SmallScreenshot is
// only present when an explicit width and height were requested.
type ScreenshotResult struct {
	URL             string `json:"url"`
	FinalURL        string `json:"final_url"`
	Screenshot      string `json:"screenshot"`
	Thumbnail       string `json:"thumbnail"`
	SmallScreenshot string `json:"small_screenshot,omitempty"`
}

// MinifiedHTML is the /minimize endpoint response.
type MinifiedHTML struct {
	MinifiedHTML string `json:"minified_html"`
}

// ExtractedText is the /extract_text endpoint response.
type ExtractedText struct {
	Text string `json:"text"`
}

// ReaderArticle is the /reader endpoint response.
type ReaderArticle struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// MarkdownDocument is the /markdown endpoint response.
type MarkdownDocument struct {
	Markdown string `json:"markdown"`
}
