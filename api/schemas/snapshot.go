package schemas

// -- Browse Session Schemas --

// Direction tags a NetworkEvent as either the request or the response side of
// an exchange.
type Direction string

const (
	DirectionRequest  Direction = "request"
	DirectionResponse Direction = "response"
)

// Unavailable is the sentinel recorded in place of any field whose capture
// failed. A failed capture degrades that single field and adds a warning log
// entry; it never aborts the session.
const Unavailable = "Unavailable due to error"

// Snapshot is the immutable aggregate result of one browse session. It is
// produced exactly once per session, optionally cached, and returned as-is.
type Snapshot struct {
	Redirects       []RedirectStep     `json:"redirects"`
	PageTitle       string             `json:"page_title"`
	MetaDescription string             `json:"meta_description"`
	NetworkEvents   []NetworkEvent     `json:"network_data"`
	Logs            []LogEntry         `json:"logs"`
	Cookies         []Cookie           `json:"cookies"`
	Performance     PerformanceMetrics `json:"performance_metrics"`
	Screenshot      string             `json:"screenshot"`
	Thumbnail       string             `json:"thumbnail"`
	DownloadedFiles []DownloadedFile   `json:"downloaded_files"`
	Video           string             `json:"video,omitempty"`
}

// NetworkEvent records one observed request or response. The CorrelationID is
// generated when the request is first observed and carried into the matching
// response event, so the two sides can be joined even though they are captured
// by independent listeners.
type NetworkEvent struct {
	CorrelationID  string             `json:"uuid"`
	Direction      Direction          `json:"network"`
	URL            string             `json:"url"`
	Method         string             `json:"method,omitempty"`
	Status         int                `json:"status,omitempty"`
	Headers        map[string]string  `json:"headers,omitempty"`
	RequestHeaders map[string]string  `json:"request_headers,omitempty"`
	// HeadersNote carries the Unavailable sentinel when header capture failed.
	HeadersNote     string             `json:"headers_note,omitempty"`
	Cookies         []Cookie           `json:"cookies,omitempty"`
	CookiesNote     string             `json:"cookies_note,omitempty"`
	ResourceType    string             `json:"resource_type"`
	RedirectedFrom  string             `json:"redirected_from,omitempty"`
	RedirectedTo    string             `json:"redirected_to,omitempty"`
	Timing          map[string]float64 `json:"timing"`
	ResponseBody    string             `json:"response_body,omitempty"`
	ResponseSize    int                `json:"response_size,omitempty"`
	BodyIsBase64    bool               `json:"body_is_base64,omitempty"`
	SecurityDetails map[string]any     `json:"security,omitempty"`
	ServerAddr      string             `json:"server,omitempty"`
}

// RedirectStep is the ordered record of one redirect hop. Step numbering is
// monotonic starting at 1 and follows response arrival order, not navigation
// order. To is the immediate next hop URL of the chain.
type RedirectStep struct {
	Step         int    `json:"step"`
	From         string `json:"from"`
	To           string `json:"to"`
	StatusCode   int    `json:"status_code"`
	ResourceType string `json:"resource_type"`
	ServerAddr   string `json:"server,omitempty"`
}

// LogEntry is a tagged union: exactly one field is populated per entry. Entries
// appear in arrival order of the underlying browser event.
type LogEntry struct {
	ConsoleMessage  string `json:"console_message,omitempty"`
	JavascriptError string `json:"javascript_error,omitempty"`
	Warning         string `json:"warning,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Cookie mirrors the browser engine's cookie representation on the wire.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"http_only"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"same_site,omitempty"`
}

// PerformanceMetrics wraps the page's navigation timing marks.
type PerformanceMetrics struct {
	PerformanceTiming map[string]float64 `json:"performance_timing"`
}

// DownloadedFile holds a file captured during the session, fully read into
// memory. The backing temporary file is deleted immediately after the read, so
// no filesystem handle outlives snapshot assembly.
type DownloadedFile struct {
	FileName    string `json:"file_name"`
	FileContent string `json:"file_content"`
}
