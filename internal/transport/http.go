package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"appframe/internal/logging"
	"appframe/internal/query"
)

const (
	// MaxResponseSize limits response body to 50MB to prevent memory exhaustion
	MaxResponseSize = 50 * 1024 * 1024

	// DefaultTimeout applies when Options.Timeout is zero
	DefaultTimeout = 10 * time.Second
)

var (
	ErrNotOpened   = errors.New("transport: send before open")
	ErrAlreadySent = errors.New("transport: handle already sent")
	ErrAborted     = errors.New("transport: aborted")
)

// HTTP creates handles backed by an http.Client.
type HTTP struct {
	client *http.Client
	logger *logging.Logger
}

var _ Factory = (*HTTP)(nil)

// NewHTTP builds an HTTP factory. A nil client uses a fresh http.Client.
func NewHTTP(client *http.Client, logger *logging.Logger) *HTTP {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTP{client: client, logger: logger}
}

// NewHandle returns an unopened handle.
func (h *HTTP) NewHandle(opts Options) Handle {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &httpHandle{
		client: h.client,
		logger: h.logger,
		opts:   opts,
		header: make(http.Header),
	}
}

type httpHandle struct {
	client *http.Client
	logger *logging.Logger
	opts   Options

	mu      sync.Mutex
	method  string
	url     string
	header  http.Header
	opened  bool
	sent    bool
	aborted bool
	settled bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func (h *httpHandle) Open(method, rawURL string) error {
	if err := validateURL(rawURL); err != nil {
		return err
	}

	h.mu.Lock()
	h.method = strings.ToUpper(method)
	h.url = rawURL
	h.opened = true
	h.mu.Unlock()

	h.readyState(StateOpened)
	return nil
}

func (h *httpHandle) SetRequestHeader(key, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.header.Set(key, value)
}

func (h *httpHandle) Send(body any) error {
	h.mu.Lock()
	switch {
	case h.aborted:
		h.mu.Unlock()
		return ErrAborted
	case !h.opened:
		h.mu.Unlock()
		return ErrNotOpened
	case h.sent:
		h.mu.Unlock()
		return ErrAlreadySent
	}

	payload, contentType, err := encodeBody(body)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	if contentType != "" && h.header.Get("Content-Type") == "" {
		h.header.Set("Content-Type", contentType)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.opts.Timeout)
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = &progressReader{r: bytes.NewReader(payload), total: int64(len(payload)), report: h.sendProgress}
	}
	req, err := http.NewRequestWithContext(ctx, h.method, h.url, bodyReader)
	if err != nil {
		cancel()
		h.mu.Unlock()
		return err
	}
	req.Header = h.header.Clone()
	if payload != nil {
		req.ContentLength = int64(len(payload))
	}

	h.sent = true
	h.cancel = cancel
	h.done = make(chan struct{})
	done := h.done
	h.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		h.exchange(req)
	}()
	return nil
}

// Abort cancels the exchange and suppresses every callback that has not
// started yet. Progress and ready-state callbacks already running when Abort
// is called still complete.
func (h *httpHandle) Abort() {
	h.mu.Lock()
	if h.aborted || h.settled {
		h.aborted = true
		h.mu.Unlock()
		return
	}
	h.aborted = true
	cancel := h.cancel
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the exchange started by Send has finished. It returns
// immediately when nothing was sent.
func (h *httpHandle) Wait() {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (h *httpHandle) exchange(req *http.Request) {
	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		h.finish(Result{Err: err, Duration: time.Since(start)})
		return
	}
	defer resp.Body.Close()

	h.readyState(StateHeadersReceived)

	// Convert response headers
	respHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			respHeaders[key] = values[0]
		}
	}

	h.readyState(StateLoading)

	// Read response body with size limit to prevent memory exhaustion
	limited := &progressReader{
		r:      io.LimitReader(resp.Body, MaxResponseSize+1),
		total:  resp.ContentLength,
		report: h.dataProgress,
	}
	respBody, err := io.ReadAll(limited)
	if err != nil {
		h.finish(Result{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Headers:    respHeaders,
			Err:        fmt.Errorf("read response: %w", err),
			Duration:   time.Since(start),
		})
		return
	}

	// Check if response was truncated
	if int64(len(respBody)) > MaxResponseSize {
		respBody = respBody[:MaxResponseSize]
		h.logger.Warnf("response body truncated (exceeded 50MB limit)")
	}

	h.finish(Result{
		Success:    resp.StatusCode < 400,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    respHeaders,
		Text:       string(respBody),
		Duration:   time.Since(start),
	})
}

// finish delivers the outcome unless Abort got there first. Abort and
// delivery race for the same flag under mu, so exactly one of them wins; an
// Abort issued from inside OnLoad or OnError is a no-op.
func (h *httpHandle) finish(res Result) {
	h.mu.Lock()
	if h.aborted || h.settled {
		h.mu.Unlock()
		return
	}
	h.settled = true
	h.mu.Unlock()

	if h.opts.OnReadyStateChange != nil {
		h.opts.OnReadyStateChange(StateChange{ReadyState: StateDone})
	}
	if res.Success {
		if h.opts.OnLoad != nil {
			h.opts.OnLoad(res)
		}
		return
	}
	if h.opts.OnError != nil {
		h.opts.OnError(res)
	}
}

func (h *httpHandle) isAborted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.aborted
}

func (h *httpHandle) readyState(state int) {
	if h.opts.OnReadyStateChange != nil && !h.isAborted() {
		h.opts.OnReadyStateChange(StateChange{ReadyState: state})
	}
}

func (h *httpHandle) sendProgress(p Progress) {
	if h.opts.OnSendStream != nil && !h.isAborted() {
		h.opts.OnSendStream(p)
	}
}

func (h *httpHandle) dataProgress(p Progress) {
	if h.opts.OnDataStream != nil && !h.isAborted() {
		h.opts.OnDataStream(p)
	}
}

// encodeBody turns a send payload into bytes. Maps are form encoded.
func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(b), "", nil
	case []byte:
		return b, "", nil
	case map[string]any:
		return []byte(query.Encode(b)), "application/x-www-form-urlencoded", nil
	case map[string]string:
		data := make(map[string]any, len(b))
		for k, v := range b {
			data[k] = v
		}
		return []byte(query.Encode(data)), "application/x-www-form-urlencoded", nil
	default:
		return nil, "", fmt.Errorf("transport: unsupported body type %T", body)
	}
}

type progressReader struct {
	r      io.Reader
	loaded int64
	total  int64
	report func(Progress)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.loaded += int64(n)
		total := p.total
		if total <= 0 {
			total = -1
		}
		p.report(Progress{Loaded: p.loaded, Total: total})
	}
	return n, err
}

// validateURL checks the URL for potential SSRF vulnerabilities
func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	// Ensure scheme is http or https
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", parsed.Scheme)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return fmt.Errorf("URL must have a hostname")
	}

	// Block cloud metadata endpoints (common SSRF targets)
	if isCloudMetadataEndpoint(hostname) {
		return fmt.Errorf("blocked request to cloud metadata endpoint: %s", hostname)
	}

	return nil
}

// isCloudMetadataEndpoint checks if the hostname is a cloud metadata service
func isCloudMetadataEndpoint(hostname string) bool {
	metadataHosts := map[string]bool{
		"169.254.169.254":          true, // AWS, GCP, Azure metadata
		"metadata.google.internal": true, // GCP metadata
		"metadata.goog":            true, // GCP metadata alternative
		"100.100.100.200":          true, // Alibaba Cloud metadata
		"169.254.170.2":            true, // AWS ECS task metadata
	}

	return metadataHosts[strings.ToLower(hostname)]
}
