package domwire

import (
	"io"
	"net/http"
	"strings"
)

// RoundTripFunc adapts a function to http.RoundTripper so tests (and
// embedders) can fake the transport without a listening server:
//
//	cfg := &domwire.ClientConfig{Transport: domwire.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
//	    return domwire.TextResponse(200, `{"message":"ok"}`), nil
//	})}
type RoundTripFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// StaticTransport answers every request with the same status and body.
func StaticTransport(status int, body string) RoundTripFunc {
	return func(r *http.Request) (*http.Response, error) {
		return TextResponse(status, body), nil
	}
}

// TextResponse builds a plain in-memory response.
func TextResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}
