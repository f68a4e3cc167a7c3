// Package transport defines the network capability used by the request
// client and ships an implementation on top of net/http.
package transport

import "time"

// Ready states reported through OnReadyStateChange.
const (
	StateUnsent = iota
	StateOpened
	StateHeadersReceived
	StateLoading
	StateDone
)

// Result is the raw outcome of one exchange.
type Result struct {
	Success    bool
	StatusCode int
	Status     string
	Headers    map[string]string
	Text       string
	Duration   time.Duration
	Err        error
}

// Progress describes how much of a body has been transferred.
// Total is -1 when the length is unknown.
type Progress struct {
	Loaded int64
	Total  int64
}

// Fraction returns the transferred share in [0,1], or -1 when Total is unknown.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return -1
	}
	return float64(p.Loaded) / float64(p.Total)
}

// StateChange carries the new ready state of a handle.
type StateChange struct {
	ReadyState int
}

// Options configures a handle. Every callback is optional.
type Options struct {
	Timeout            time.Duration
	OnLoad             func(Result)
	OnError            func(Result)
	OnSendStream       func(Progress)
	OnDataStream       func(Progress)
	OnReadyStateChange func(StateChange)
}

// Handle performs a single exchange. Headers may only be set after Open.
// After Abort no callback fires.
type Handle interface {
	Open(method, url string) error
	SetRequestHeader(key, value string)
	Send(body any) error
	Abort()
}

// Factory creates handles.
type Factory interface {
	NewHandle(opts Options) Handle
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(opts Options) Handle

// NewHandle calls f.
func (f FactoryFunc) NewHandle(opts Options) Handle {
	return f(opts)
}
