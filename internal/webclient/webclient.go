// Package webclient is the HTTP fetch layer shared by the web and social
// modules, the page fetcher and the llm analyzer. Backends are selected by name.
package webclient

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	ErrNilRequest         = errors.New("webclient: nil request")
	ErrMethodNotSupported = errors.New("webclient: method not supported")
)

type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)
	Get(ctx context.Context, url string) (*Response, error)
	Close() error
}

type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }
