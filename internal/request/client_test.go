package request

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/vmihailenco/msgpack/v5"

	"appframe/internal/logging"
	"appframe/internal/model"
	"appframe/internal/transport"
)

// fakeHandle records what the client does and lets tests complete the exchange.
type fakeHandle struct {
	opts    transport.Options
	method  string
	url     string
	headers map[string]string
	body    any
	sent    bool
	aborts  int
	openErr error
}

func (h *fakeHandle) Open(method, url string) error {
	if h.openErr != nil {
		return h.openErr
	}
	h.method = method
	h.url = url
	return nil
}

func (h *fakeHandle) SetRequestHeader(key, value string) {
	h.headers[key] = value
}

func (h *fakeHandle) Send(body any) error {
	h.body = body
	h.sent = true
	return nil
}

func (h *fakeHandle) Abort() {
	h.aborts++
}

type fakeTransport struct {
	handles []*fakeHandle
	openErr error
}

func (f *fakeTransport) NewHandle(opts transport.Options) transport.Handle {
	h := &fakeHandle{opts: opts, headers: map[string]string{}, openErr: f.openErr}
	f.handles = append(f.handles, h)
	return h
}

func (f *fakeTransport) last(t *testing.T) *fakeHandle {
	t.Helper()
	if len(f.handles) == 0 {
		t.Fatal("no transport handle created")
	}
	return f.handles[len(f.handles)-1]
}

type memoryRecorder struct {
	mu      sync.Mutex
	entries []model.Request
}

func (m *memoryRecorder) AddToHistory(req model.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, req)
	return nil
}

func newTestClient(ft *fakeTransport) *Client {
	return NewClient(Options{
		BaseURL:   "https://api.example.com",
		Transport: ft,
		Logger:    logging.Discard(),
	})
}

func TestIssue_GetEncodesDataIntoURL(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(ft)

	call, err := c.Issue(Config{URL: "/items", Method: "GET", Data: map[string]any{"q": "a b"}})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	h := ft.last(t)
	want := "https://api.example.com/items?q=a%20b"
	if h.url != want || call.URL() != want {
		t.Fatalf("url = %q, want %q", h.url, want)
	}
	if h.method != http.MethodGet {
		t.Fatalf("method = %q, want GET", h.method)
	}
	if h.body != nil {
		t.Fatalf("GET body = %#v, want nil", h.body)
	}
}

func TestIssue_DeleteAppendsToExistingQuery(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(ft)

	if _, err := c.Issue(Config{URL: "/items?force=1", Method: "delete", Data: map[string]any{"id": 7}}); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	h := ft.last(t)
	if h.url != "https://api.example.com/items?force=1&id=7" {
		t.Fatalf("url = %q", h.url)
	}
	if h.method != http.MethodDelete || h.body != nil {
		t.Fatalf("method=%q body=%#v, want DELETE without body", h.method, h.body)
	}
}

func TestIssue_DefaultsToGetAndTimeout(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(ft)

	if _, err := c.Issue(Config{URL: "/ping"}); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	h := ft.last(t)
	if h.method != http.MethodGet {
		t.Fatalf("method = %q, want GET", h.method)
	}
	if h.url != "https://api.example.com/ping" {
		t.Fatalf("url = %q, want no query for empty data", h.url)
	}
	if h.opts.Timeout != DefaultTimeout {
		t.Fatalf("timeout = %v, want %v", h.opts.Timeout, DefaultTimeout)
	}
}

func TestIssue_PostJSONEncodesBodyAndSetsContentType(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(ft)

	_, err := c.Issue(Config{
		URL:     "/items",
		Method:  "POST",
		Data:    map[string]any{"x": 1},
		JSON:    true,
		Headers: map[string]string{"Content-Type": "text/plain", "X-Token": "t"},
	})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	h := ft.last(t)
	if h.body != `{"x":1}` {
		t.Fatalf("body = %#v, want {\"x\":1}", h.body)
	}
	if h.headers["Content-Type"] != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", h.headers["Content-Type"])
	}
	if h.headers["X-Token"] != "t" {
		t.Fatalf("X-Token = %q", h.headers["X-Token"])
	}
	if strings.Contains(h.url, "?") {
		t.Fatalf("url %q carries a query for POST", h.url)
	}
}

func TestIssue_PostWithoutJSONSendsDataAsProvided(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(ft)

	data := map[string]any{"x": 1}
	if _, err := c.Issue(Config{URL: "/items", Method: "PUT", Data: data}); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	h := ft.last(t)
	body, ok := h.body.(map[string]any)
	if !ok || body["x"] != 1 {
		t.Fatalf("body = %#v, want data map", h.body)
	}
	if _, set := h.headers["Content-Type"]; set {
		t.Fatal("Content-Type set without JSON mode")
	}
	if h.url != "https://api.example.com/items" {
		t.Fatalf("url = %q", h.url)
	}
}

func TestIssue_AbsoluteURLSkipsBase(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(ft)

	for _, u := range []string{"http://other.example/x", "HTTPS://other.example/y"} {
		if _, err := c.Issue(Config{URL: u}); err != nil {
			t.Fatalf("Issue(%q) returned error: %v", u, err)
		}
		if got := ft.last(t).url; got != u {
			t.Fatalf("url = %q, want %q", got, u)
		}
	}
}

func TestIssue_MissingURL(t *testing.T) {
	c := newTestClient(&fakeTransport{})
	if _, err := c.Issue(Config{}); !errors.Is(err, ErrMissingURL) {
		t.Fatalf("Issue error = %v, want ErrMissingURL", err)
	}
}

func TestIssue_OpenFailureIsReturned(t *testing.T) {
	ft := &fakeTransport{openErr: errors.New("bad url")}
	c := newTestClient(ft)

	_, err := c.Issue(Config{URL: "/x"})
	if err == nil || !strings.Contains(err.Error(), "bad url") {
		t.Fatalf("Issue error = %v, want open failure", err)
	}
	if ft.last(t).aborts != 1 {
		t.Fatalf("aborts = %d, want 1", ft.last(t).aborts)
	}
}

func TestSuccess_DecodesJSON(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(ft)

	var got *Response
	if _, err := c.Issue(Config{URL: "/x", Success: func(r *Response) { got = r }}); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	ft.last(t).opts.OnLoad(transport.Result{Success: true, StatusCode: 200, Text: `{"name":"a","n":2}`})

	if got == nil || got.Raw {
		t.Fatalf("response = %#v, want decoded", got)
	}
	body, ok := got.Body.(map[string]any)
	if !ok || body["name"] != "a" || body["n"] != float64(2) {
		t.Fatalf("body = %#v", got.Body)
	}
}

func TestSuccess_InvalidJSONFallsBackToRawText(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(ft)

	var got *Response
	if _, err := c.Issue(Config{URL: "/x", Success: func(r *Response) { got = r }}); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	ft.last(t).opts.OnLoad(transport.Result{Success: true, StatusCode: 200, Text: "<html>not json</html>"})

	text, ok := got.Text()
	if !ok || text != "<html>not json</html>" {
		t.Fatalf("Text() = %q, %v; want raw body", text, ok)
	}
}

func TestSuccess_UnsuccessfulLoadRoutesToError(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(ft)

	successCalled := false
	var got *Response
	_, err := c.Issue(Config{
		URL:     "/x",
		Success: func(*Response) { successCalled = true },
		Error:   func(r *Response) { got = r },
	})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	ft.last(t).opts.OnLoad(transport.Result{Success: false, StatusCode: 500, Text: `{"error":"boom"}`})

	if successCalled {
		t.Fatal("Success handler called for unsuccessful result")
	}
	if got == nil || got.Success {
		t.Fatalf("error response = %#v", got)
	}
	if body, ok := got.Body.(map[string]any); !ok || body["error"] != "boom" {
		t.Fatalf("error body = %#v", got.Body)
	}
}

func TestError_RawTextAndTransportError(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(ft)

	var got *Response
	if _, err := c.Issue(Config{URL: "/x", Error: func(r *Response) { got = r }}); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	timeout := errors.New("timeout")
	ft.last(t).opts.OnError(transport.Result{Text: "gateway timeout", Err: timeout})

	if text, ok := got.Text(); !ok || text != "gateway timeout" {
		t.Fatalf("Text() = %q, %v", text, ok)
	}
	if !errors.Is(got.Err, timeout) {
		t.Fatalf("Err = %v, want timeout", got.Err)
	}
}

func TestCallbacks_AreOptional(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(ft)

	if _, err := c.Issue(Config{URL: "/x"}); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	h := ft.last(t)
	h.opts.OnLoad(transport.Result{Success: true, Text: "ok"})
	h.opts.OnError(transport.Result{Text: "nope"})
}

func TestProgressAndStateChangeArePassedThrough(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(ft)

	var progress []transport.Progress
	var states []int
	_, err := c.Issue(Config{
		URL:         "/x",
		Progress:    func(p transport.Progress) { progress = append(progress, p) },
		StateChange: func(s transport.StateChange) { states = append(states, s.ReadyState) },
	})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	h := ft.last(t)
	h.opts.OnSendStream(transport.Progress{Loaded: 1, Total: 2})
	h.opts.OnDataStream(transport.Progress{Loaded: 2, Total: 2})
	h.opts.OnReadyStateChange(transport.StateChange{ReadyState: transport.StateDone})

	if len(progress) != 2 || progress[1].Loaded != 2 {
		t.Fatalf("progress = %#v", progress)
	}
	if len(states) != 1 || states[0] != transport.StateDone {
		t.Fatalf("states = %v", states)
	}
}

func TestRelease_AbortsOnceAndIsIdempotent(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(ft)

	call, err := c.Issue(Config{URL: "/x"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	call.Release()
	call.Release()

	if got := ft.last(t).aborts; got != 1 {
		t.Fatalf("aborts = %d, want 1", got)
	}
}

func TestRelease_AfterCompletionDoesNotAbort(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(ft)

	call, err := c.Issue(Config{URL: "/x"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	ft.last(t).opts.OnLoad(transport.Result{Success: true, Text: "{}"})
	call.Release()

	if got := ft.last(t).aborts; got != 0 {
		t.Fatalf("aborts = %d, want 0", got)
	}
}

func TestRecorder_RedactsSensitiveHeaders(t *testing.T) {
	ft := &fakeTransport{}
	rec := &memoryRecorder{}
	c := NewClient(Options{BaseURL: "https://api.example.com", Transport: ft, Logger: logging.Discard(), Recorder: rec})

	_, err := c.Issue(Config{
		URL:     "/login",
		Method:  "POST",
		Data:    map[string]any{"user": "a"},
		JSON:    true,
		Headers: map[string]string{"Authorization": "Bearer secret", "Accept": "application/json"},
	})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	ft.last(t).opts.OnLoad(transport.Result{
		Success:    true,
		StatusCode: 201,
		Status:     "201 Created",
		Headers:    map[string]string{"Set-Cookie": "sid=1"},
		Text:       `{"ok":true}`,
		Duration:   15 * time.Millisecond,
	})

	if len(rec.entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(rec.entries))
	}
	entry := rec.entries[0]
	if len(entry.ID) != 8 {
		t.Fatalf("ID = %q, want 8 chars", entry.ID)
	}
	if entry.Headers["Authorization"] != "[REDACTED]" || entry.Headers["Accept"] != "application/json" {
		t.Fatalf("headers = %v", entry.Headers)
	}
	if entry.Response.Headers["Set-Cookie"] != "[REDACTED]" {
		t.Fatalf("response headers = %v", entry.Response.Headers)
	}
	if entry.Body != `{"user":"a"}` || entry.Response.StatusCode != 201 || entry.Response.DurationMs != 15 {
		t.Fatalf("entry = %#v", entry)
	}
}

func TestClient_AgainstHTTPServer(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"q":"` + r.URL.Query().Get("q") + `"}`))
	}).Methods(http.MethodGet)
	r.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "want json", http.StatusUnsupportedMediaType)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}).Methods(http.MethodPost)
	r.HandleFunc("/packed", func(w http.ResponseWriter, r *http.Request) {
		payload, _ := msgpack.Marshal(map[string]any{"id": "p1"})
		w.Header().Set("Content-Type", "application/msgpack")
		_, _ = w.Write(payload)
	})
	r.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	c := NewClient(Options{
		BaseURL:   server.URL,
		Transport: transport.NewHTTP(server.Client(), nil),
		Logger:    logging.Discard(),
	})

	type outcome struct {
		resp    *Response
		success bool
	}
	run := func(cfg Config) outcome {
		t.Helper()
		done := make(chan outcome, 1)
		cfg.Success = func(r *Response) { done <- outcome{r, true} }
		cfg.Error = func(r *Response) { done <- outcome{r, false} }
		if _, err := c.Issue(cfg); err != nil {
			t.Fatalf("Issue returned error: %v", err)
		}
		select {
		case o := <-done:
			return o
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for callback")
		}
		return outcome{}
	}

	got := run(Config{URL: "/items", Data: map[string]any{"q": "a b"}})
	if !got.success {
		t.Fatalf("GET routed to error: %#v", got.resp)
	}
	if body, ok := got.resp.Body.(map[string]any); !ok || body["q"] != "a b" {
		t.Fatalf("GET body = %#v", got.resp.Body)
	}

	got = run(Config{URL: "/items", Method: "POST", Data: map[string]any{"x": 1}, JSON: true})
	if !got.success || got.resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST outcome = %#v", got)
	}
	if text, ok := got.resp.Text(); !ok || text != "created" {
		t.Fatalf("POST text = %q, %v", text, ok)
	}

	got = run(Config{URL: "/packed"})
	if body, ok := got.resp.Body.(map[string]any); !ok || body["id"] != "p1" {
		t.Fatalf("msgpack body = %#v", got.resp.Body)
	}

	got = run(Config{URL: "/broken"})
	if got.success || got.resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("broken outcome = %#v", got)
	}
	if text, ok := got.resp.Text(); !ok || !strings.Contains(text, "upstream down") {
		t.Fatalf("broken text = %q, %v", text, ok)
	}
}
