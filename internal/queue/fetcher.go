package queue

import "net/http"

// Fetcher issues a previously-serialized request. Production code uses
// HTTPFetcher; tests inject a stub so replay behavior can be exercised
// without a real network call.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFetcher is the default Fetcher, backed by an *http.Client.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns an HTTPFetcher using client, or http.DefaultClient
// if client is nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{Client: client}
}

// Do implements Fetcher.
func (f *HTTPFetcher) Do(req *http.Request) (*http.Response, error) {
	return f.Client.Do(req)
}
