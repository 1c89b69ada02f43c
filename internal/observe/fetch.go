package observe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"
)

// maxPageBytes caps how much of a board page is read.
const maxPageBytes = 16 << 20

// Page is one fetched rendering of the board.
type Page struct {
	// URL is the address the rendering was served from, after redirects.
	URL  string
	Body []byte
}

// Fetcher retrieves the current rendering of the board page.
type Fetcher interface {
	Fetch(ctx context.Context) (Page, error)
}

// FetchFunc adapts a function to Fetcher.
type FetchFunc func(ctx context.Context) (Page, error)

// Fetch implements Fetcher.
func (f FetchFunc) Fetch(ctx context.Context) (Page, error) {
	return f(ctx)
}

// Navigator is implemented by fetchers that can be pointed at another page.
type Navigator interface {
	Navigate(url string)
}

// HTTPFetcher fetches the board over HTTP.
type HTTPFetcher struct {
	URL    string
	Header http.Header
	Client *http.Client

	mu sync.Mutex
}

// NewHTTPFetcher creates an HTTPFetcher with a bounded request timeout.
func NewHTTPFetcher(url string, header http.Header, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		URL:    url,
		Header: header,
		Client: &http.Client{Timeout: timeout},
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context) (Page, error) {
	f.mu.Lock()
	url := f.URL
	f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range f.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Page{}, fmt.Errorf("read %s: %w", url, err)
	}

	return Page{URL: resp.Request.URL.String(), Body: body}, nil
}

// Navigate implements Navigator.
func (f *HTTPFetcher) Navigate(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.URL = url
}

// FileFetcher reads the board from a file that some other process keeps
// up to date (a browser extension dump, a headless renderer).
type FileFetcher struct {
	Path string

	// URL is reported as the page address.
	URL string

	mu sync.Mutex
}

// Fetch implements Fetcher.
func (f *FileFetcher) Fetch(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	f.mu.Lock()
	path, url := f.Path, f.URL
	f.mu.Unlock()

	body, err := os.ReadFile(path)
	if err != nil {
		return Page{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Page{URL: url, Body: body}, nil
}

// Navigate implements Navigator. The file keeps being read; only the
// reported address changes.
func (f *FileFetcher) Navigate(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.URL = url
}
