// Package httpreq converts between a live *http.Request and a durable,
// JSON-serializable Record suitable for storage and replay.
package httpreq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Record is the serialized form of an HTTP request. It captures everything
// needed to reissue the request later, since an *http.Request's Body is a
// one-shot io.ReadCloser that cannot itself be persisted.
type Record struct {
	Method  string              `json:"method"`
	URL     string              `json:"url"`
	Headers map[string][]string `json:"headers,omitempty"`
	Body    []byte              `json:"body,omitempty"`

	// Mode, Credentials, Cache, Redirect, Integrity and Referrer mirror
	// fetch() request options from the source system. net/http has no
	// native concept for them; they round-trip as opaque strings and are
	// otherwise ignored by ToRequest.
	Mode        string `json:"mode,omitempty"`
	Credentials string `json:"credentials,omitempty"`
	Cache       string `json:"cache,omitempty"`
	Redirect    string `json:"redirect,omitempty"`
	Integrity   string `json:"integrity,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
}

// permitsBody reports whether method carries a request body by convention.
func permitsBody(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}

// FromRequest captures req into a Record, consuming and replacing req.Body
// so the original request remains usable by the caller.
func FromRequest(req *http.Request) (Record, error) {
	rec := Record{
		Method:  req.Method,
		URL:     req.URL.String(),
		Headers: map[string][]string{},
	}
	for k, v := range req.Header {
		vv := make([]string, len(v))
		copy(vv, v)
		rec.Headers[k] = vv
	}

	if permitsBody(req.Method) && req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return Record{}, fmt.Errorf("httpreq: read body: %w", err)
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
		rec.Body = body
	}

	return rec, nil
}

// ToRequest reconstructs an *http.Request from rec. The returned request's
// Body, if any, is re-readable exactly once, matching net/http's own
// contract for request bodies.
func (r Record) ToRequest() (*http.Request, error) {
	var body io.Reader
	if permitsBody(r.Method) && r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequest(r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("httpreq: build request: %w", err)
	}
	for k, vv := range r.Headers {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// Marshal returns the canonical JSON encoding of r for storage.
func Marshal(r Record) ([]byte, error) {
	buf, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("httpreq: marshal record: %w", err)
	}
	return buf, nil
}

// Unmarshal decodes a Record previously produced by Marshal.
func Unmarshal(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("httpreq: unmarshal record: %w", err)
	}
	return r, nil
}
