// Package request issues calls against a configurable base endpoint and routes
// their outcome to caller supplied handlers.
//
// For GET and DELETE the data map is encoded into the URL query; for every
// other method it travels as the body, JSON encoded when Config.JSON is set.
// Response bodies are decoded as JSON (or msgpack when the server says so);
// bodies that fail to decode are handed to the handler as raw text.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"appframe/internal/logging"
	"appframe/internal/model"
	"appframe/internal/query"
	"appframe/internal/transport"
)

// DefaultTimeout is used when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// ErrMissingURL is returned by Issue when Config.URL is empty.
var ErrMissingURL = errors.New("request: url is required")

// Config describes one call. Every callback is optional.
type Config struct {
	URL         string
	Method      string
	Data        map[string]any
	Headers     map[string]string
	JSON        bool
	Timeout     time.Duration
	Success     func(*Response)
	Error       func(*Response)
	Progress    func(transport.Progress)
	StateChange func(transport.StateChange)
}

// Response is handed to the Success and Error callbacks. Body holds the
// decoded value, or the raw response text when Raw is set.
type Response struct {
	Success    bool
	StatusCode int
	Body       any
	Raw        bool
	Err        error
}

// Text returns the raw body when decoding failed.
func (r *Response) Text() (string, bool) {
	if r == nil || !r.Raw {
		return "", false
	}
	s, ok := r.Body.(string)
	return s, ok
}

// Recorder receives a history entry for every completed call.
type Recorder interface {
	AddToHistory(req model.Request) error
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Transport transport.Factory
	Logger    *logging.Logger
	Recorder  Recorder
}

// Client issues calls. It is safe for concurrent use.
type Client struct {
	baseURL   string
	transport transport.Factory
	logger    *logging.Logger
	recorder  Recorder
}

// NewClient builds a Client. A nil transport falls back to net/http.
func NewClient(opts Options) *Client {
	if opts.Transport == nil {
		opts.Transport = transport.NewHTTP(nil, opts.Logger)
	}
	return &Client{
		baseURL:   strings.TrimSpace(opts.BaseURL),
		transport: opts.Transport,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
	}
}

// BaseURL returns the endpoint prepended to relative URLs.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Issue builds and sends one call. It returns an error only when the call
// cannot be started; every later outcome is routed to cfg.Success or cfg.Error.
func (c *Client) Issue(cfg Config) (*Call, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrMissingURL
	}

	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}
	if cfg.Data == nil {
		cfg.Data = map[string]any{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	url := cfg.URL
	var body any
	if method == http.MethodGet || method == http.MethodDelete {
		url = query.Append(url, cfg.Data)
	} else {
		body = cfg.Data
	}
	url = c.resolve(url)

	call := &Call{
		client:  c,
		cfg:     cfg,
		method:  method,
		url:     url,
		headers: make(map[string]string, len(cfg.Headers)+1),
		started: time.Now(),
	}

	handle := c.transport.NewHandle(transport.Options{
		Timeout:            timeout,
		OnLoad:             call.onLoad,
		OnError:            call.onError,
		OnSendStream:       cfg.Progress,
		OnDataStream:       cfg.Progress,
		OnReadyStateChange: cfg.StateChange,
	})
	call.handle = handle

	c.logger.Debugf("%s: %s", method, url)

	if err := handle.Open(method, url); err != nil {
		call.Release()
		return nil, fmt.Errorf("open %s %s: %w", method, url, err)
	}

	// Headers can only be set once the handle is open
	for key, value := range cfg.Headers {
		handle.SetRequestHeader(key, value)
		call.headers[key] = value
	}

	if cfg.JSON {
		handle.SetRequestHeader("Content-Type", "application/json")
		call.headers["Content-Type"] = "application/json"

		if body != nil {
			encoded, err := json.Marshal(body)
			if err != nil {
				call.Release()
				return nil, fmt.Errorf("encode body: %w", err)
			}
			body = string(encoded)
		}
	}
	call.body = body

	if err := handle.Send(body); err != nil {
		call.Release()
		return nil, fmt.Errorf("send %s %s: %w", method, url, err)
	}

	return call, nil
}

// resolve prepends the base URL unless rawURL is already absolute.
func (c *Client) resolve(rawURL string) string {
	if isAbsolute(rawURL) || c.baseURL == "" {
		return rawURL
	}
	return strings.TrimSuffix(c.baseURL, "/") + "/" + strings.TrimPrefix(rawURL, "/")
}

func isAbsolute(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Call is the handle of one issued request.
type Call struct {
	client  *Client
	cfg     Config
	method  string
	url     string
	headers map[string]string
	body    any
	started time.Time

	mu     sync.Mutex
	handle transport.Handle
}

// Method returns the resolved HTTP method.
func (c *Call) Method() string { return c.method }

// URL returns the resolved URL, including any encoded query.
func (c *Call) URL() string { return c.url }

// Body returns what was handed to the transport: nil, the data map, or a JSON string.
func (c *Call) Body() any { return c.body }

// Release aborts the exchange if it is still active and makes the call inert.
// It is safe to call more than once.
func (c *Call) Release() {
	c.mu.Lock()
	handle := c.handle
	c.handle = nil
	c.mu.Unlock()

	if handle != nil {
		handle.Abort()
	}
}

func (c *Call) onLoad(res transport.Result) {
	if !res.Success {
		c.onError(res)
		return
	}

	resp := &Response{Success: true, StatusCode: res.StatusCode}
	resp.Body, resp.Raw = c.decode(res)
	c.complete(res)

	if c.cfg.Success != nil {
		c.cfg.Success(resp)
	}
}

func (c *Call) onError(res transport.Result) {
	resp := &Response{Success: false, StatusCode: res.StatusCode, Err: res.Err}
	resp.Body, resp.Raw = c.decode(res)
	c.complete(res)

	c.client.logger.Infof("%s %s failed: %s", c.method, c.url, describe(res))

	if c.cfg.Error != nil {
		c.cfg.Error(resp)
	}
}

// decode parses the response text, falling back to the raw text.
func (c *Call) decode(res transport.Result) (any, bool) {
	var value any
	var err error
	if isMsgpack(res.Headers) {
		err = msgpack.Unmarshal([]byte(res.Text), &value)
	} else {
		err = json.Unmarshal([]byte(res.Text), &value)
	}
	if err != nil {
		c.client.logger.Errorf("Tried to parse response, but it was not valid: %v", err)
		c.client.logger.Errorf("%s", res.Text)
		return res.Text, true
	}
	return value, false
}

// complete drops the transport reference and records the exchange.
func (c *Call) complete(res transport.Result) {
	c.mu.Lock()
	c.handle = nil
	c.mu.Unlock()

	if c.client.recorder == nil {
		return
	}

	entry := model.Request{
		ID:        uuid.New().String()[:8],
		Timestamp: c.started,
		Method:    c.method,
		URL:       c.url,
		Headers:   filterSensitiveHeaders(c.headers),
		Body:      bodyText(c.body),
		Response: &model.Response{
			StatusCode: res.StatusCode,
			Status:     res.Status,
			Headers:    filterSensitiveHeaders(res.Headers),
			Body:       res.Text,
			DurationMs: res.Duration.Milliseconds(),
		},
	}
	if res.Err != nil {
		entry.Response.Error = res.Err.Error()
	}

	if err := c.client.recorder.AddToHistory(entry); err != nil {
		c.client.logger.Warnf("record history: %v", err)
	}
}

func isMsgpack(headers map[string]string) bool {
	for key, value := range headers {
		if strings.EqualFold(key, "Content-Type") {
			return strings.Contains(strings.ToLower(value), "msgpack")
		}
	}
	return false
}

func bodyText(body any) string {
	switch b := body.(type) {
	case nil:
		return ""
	case string:
		return b
	case map[string]any:
		return query.Encode(b)
	default:
		return fmt.Sprint(b)
	}
}

func describe(res transport.Result) string {
	if res.Err != nil {
		return res.Err.Error()
	}
	if res.Status != "" {
		return res.Status
	}
	return fmt.Sprintf("status %d", res.StatusCode)
}
