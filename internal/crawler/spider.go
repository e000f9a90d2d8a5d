package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/nao1215/vutcrawl/internal/model"
)

// Default request settings.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultUserAgent   = "vutcrawl/1.0 (+https://github.com/nao1215/vutcrawl)"
	DefaultMaxBodySize = 10 * 1024 * 1024
)

// Spider fetches catalog pages over HTTP and parses them into page documents.
// It fetches exactly the page it is asked for; the traversal order is owned
// by the caller.
type Spider struct {
	client      *http.Client
	parser      *Parser
	timeout     time.Duration
	userAgent   string
	headers     map[string]string
	maxBodySize int64
	logger      *slog.Logger

	mutex sync.Mutex
	stats SpiderStats
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) SpiderOption {
	return func(s *Spider) {
		s.client = client
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.timeout = d
	}
}

// WithSpiderUserAgent sets the User-Agent header.
func WithSpiderUserAgent(ua string) SpiderOption {
	return func(s *Spider) {
		s.userAgent = ua
	}
}

// WithHeaders adds extra request headers. They override the defaults.
func WithHeaders(headers map[string]string) SpiderOption {
	return func(s *Spider) {
		s.headers = headers
	}
}

// WithSpiderMaxBodySize limits how much of a response body is read.
func WithSpiderMaxBodySize(size int64) SpiderOption {
	return func(s *Spider) {
		s.maxBodySize = size
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider.
func NewSpider(opts ...SpiderOption) *Spider {
	s := &Spider{
		client:      &http.Client{},
		parser:      NewParser(),
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Fetch downloads the page of req and parses it according to req.Kind.
// Every failure is a *model.FetchError classified as transient (network
// errors, timeouts, 429 and 5xx) or permanent (other statuses, invalid
// URLs and unparseable pages).
func (s *Spider) Fetch(ctx context.Context, req model.FetchRequest) (model.PageDocument, error) {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		s.count(func(st *SpiderStats) { st.Failed++ })
		return nil, model.NewPermanentError(req.URL, "invalid URL", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		s.count(func(st *SpiderStats) { st.Failed++ })
		return nil, model.NewPermanentError(req.URL, "invalid request", err)
	}
	s.setHeaders(httpReq, req.Locale)

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.count(func(st *SpiderStats) { st.Failed++ })
		return nil, model.NewTransientError(req.URL, networkDetail(err), err)
	}
	defer resp.Body.Close()

	if fe := classifyStatus(req.URL, resp.StatusCode); fe != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, s.maxBodySize))
		s.count(func(st *SpiderStats) { st.Failed++ })
		return nil, fe
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, s.maxBodySize), resp.Header.Get("Content-Type"))
	if err != nil {
		s.count(func(st *SpiderStats) { st.Failed++ })
		return nil, &model.FetchError{
			Kind: model.FetchPermanent, URL: req.URL, Status: resp.StatusCode,
			Detail: "unsupported charset", Err: err,
		}
	}

	doc, err := s.parser.Parse(body, req, resp.Request.URL.String())
	if err != nil {
		s.count(func(st *SpiderStats) { st.Failed++ })
		if isNetworkError(err) {
			return nil, &model.FetchError{
				Kind: model.FetchTransient, URL: req.URL, Status: resp.StatusCode,
				Detail: "body read failed", Err: err,
			}
		}
		return nil, &model.FetchError{
			Kind: model.FetchPermanent, URL: req.URL, Status: resp.StatusCode,
			Detail: "parse failed", Err: err,
		}
	}

	s.count(func(st *SpiderStats) { st.Fetched++ })
	s.logger.Debug("fetched page",
		"kind", req.Kind.String(),
		"url", req.URL,
		"status", resp.StatusCode,
		"elapsed", time.Since(start))

	return doc, nil
}

func (s *Spider) setHeaders(req *http.Request, locale model.Locale) {
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if locale.Valid() {
		req.Header.Set("Accept-Language", locale.AcceptLanguage())
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
}

func (s *Spider) count(fn func(*SpiderStats)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	fn(&s.stats)
}

// Stats returns request statistics.
func (s *Spider) Stats() SpiderStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats
}

// SpiderStats contains request statistics.
type SpiderStats struct {
	// Fetched is the number of pages fetched and parsed.
	Fetched int

	// Failed is the number of requests that returned an error.
	Failed int
}

// classifyStatus returns nil for 2xx responses.
func classifyStatus(pageURL string, status int) *model.FetchError {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return &model.FetchError{
			Kind: model.FetchTransient, URL: pageURL, Status: status,
			Detail: http.StatusText(status),
		}
	default:
		return &model.FetchError{
			Kind: model.FetchPermanent, URL: pageURL, Status: status,
			Detail: http.StatusText(status),
		}
	}
}

func networkDetail(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "request failed"
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		strings.Contains(err.Error(), "connection reset")
}

// String implements fmt.Stringer.
func (st SpiderStats) String() string {
	return fmt.Sprintf("%d fetched, %d failed", st.Fetched, st.Failed)
}
