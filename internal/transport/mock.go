package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/ColonelPanicX/comply-with-me/internal/models"
)

// MockClient provides a canned-response Client for testing discovery
// and fetch logic without a network.
type MockClient struct {
	mu sync.Mutex

	// Response configuration
	Pages     map[string]*Response
	Heads     map[string]*Response
	Documents map[string]*mockDocument

	// Error injection
	GetErrors      map[string]error
	HeadErrors     map[string]error
	DownloadErrors map[string]error

	// Request tracking
	GetRequests      []string
	HeadRequests     []string
	DownloadRequests []string

	// Headers seen per URL, for asserting Referer and auth handling
	SeenHeaders map[string]http.Header
}

type mockDocument struct {
	body        []byte
	contentType string
}

// NewMockClient creates a mock transport client.
func NewMockClient() *MockClient {
	return &MockClient{
		Pages:          make(map[string]*Response),
		Heads:          make(map[string]*Response),
		Documents:      make(map[string]*mockDocument),
		GetErrors:      make(map[string]error),
		HeadErrors:     make(map[string]error),
		DownloadErrors: make(map[string]error),
		SeenHeaders:    make(map[string]http.Header),
	}
}

// Get returns a configured page response.
func (m *MockClient) Get(ctx context.Context, url string, hdr http.Header) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetRequests = append(m.GetRequests, url)
	m.recordHeaders(url, hdr)

	if err, ok := m.GetErrors[url]; ok {
		return nil, err
	}

	if resp, ok := m.Pages[url]; ok {
		return resp, nil
	}

	return nil, &models.HTTPError{URL: url, StatusCode: 404, Status: "404 Not Found"}
}

// Head returns a configured probe response.
func (m *MockClient) Head(ctx context.Context, url string, hdr http.Header) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.HeadRequests = append(m.HeadRequests, url)
	m.recordHeaders(url, hdr)

	if err, ok := m.HeadErrors[url]; ok {
		return nil, err
	}

	if resp, ok := m.Heads[url]; ok {
		return resp, nil
	}

	return nil, &models.HTTPError{URL: url, StatusCode: 404, Status: "404 Not Found"}
}

// Download returns a configured document stream.
func (m *MockClient) Download(ctx context.Context, url string, hdr http.Header) (*Download, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DownloadRequests = append(m.DownloadRequests, url)
	m.recordHeaders(url, hdr)

	if err, ok := m.DownloadErrors[url]; ok {
		return nil, err
	}

	if doc, ok := m.Documents[url]; ok {
		return &Download{
			Body:          io.NopCloser(bytes.NewReader(doc.body)),
			StatusCode:    200,
			ContentType:   doc.contentType,
			ContentLength: int64(len(doc.body)),
			FinalURL:      url,
		}, nil
	}

	return nil, &models.HTTPError{URL: url, StatusCode: 404, Status: "404 Not Found"}
}

// Close is a no-op.
func (m *MockClient) Close() error {
	return nil
}

func (m *MockClient) recordHeaders(url string, hdr http.Header) {
	if hdr == nil {
		return
	}
	saved := make(http.Header, len(hdr))
	for k, v := range hdr {
		saved[k] = append([]string(nil), v...)
	}
	m.SeenHeaders[url] = saved
}

// Helper methods for test setup

// AddPage configures an HTML listing response.
func (m *MockClient) AddPage(url, html string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Pages[url] = &Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:       []byte(html),
		FinalURL:   url,
	}
}

// AddJSON configures a JSON API response.
func (m *MockClient) AddJSON(url, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Pages[url] = &Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(body),
		FinalURL:   url,
	}
}

// AddDocument configures a downloadable payload.
func (m *MockClient) AddDocument(url, contentType string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Documents[url] = &mockDocument{body: body, contentType: contentType}

	// HEAD of a document reports its size
	m.Heads[url] = &Response{
		StatusCode: 200,
		Header: http.Header{
			"Content-Type":   []string{contentType},
			"Content-Length": []string{strconv.Itoa(len(body))},
		},
		FinalURL: url,
	}
}

// AddHead configures a bare probe response.
func (m *MockClient) AddHead(url string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Heads[url] = &Response{
		StatusCode: status,
		Header:     http.Header{},
		FinalURL:   url,
	}
}

// AddGetError injects an error for a page URL.
func (m *MockClient) AddGetError(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetErrors[url] = err
}

// AddHeadError injects an error for a probe URL.
func (m *MockClient) AddHeadError(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HeadErrors[url] = err
}

// AddDownloadError injects an error for a document URL.
func (m *MockClient) AddDownloadError(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DownloadErrors[url] = err
}
