package testutil

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// DocServer simulates a document publisher for integration tests:
// HTML listing pages, downloadable documents, and the block responses
// that drive fetch escalation.
type DocServer struct {
	*httptest.Server

	mu        sync.RWMutex
	listings  map[string]string
	documents map[string][]byte
	statuses  map[string]int  // forced status codes, e.g. 403
	blockHTML map[string]bool // serve an Access Denied page with a 200
	latency   map[string]time.Duration
	getHits   map[string]int
	headHits  map[string]int
}

// NewDocServer creates a running test server. Callers own Close.
func NewDocServer() *DocServer {
	ds := &DocServer{
		listings:  make(map[string]string),
		documents: make(map[string][]byte),
		statuses:  make(map[string]int),
		blockHTML: make(map[string]bool),
		latency:   make(map[string]time.Duration),
		getHits:   make(map[string]int),
		headHits:  make(map[string]int),
	}
	ds.Server = httptest.NewServer(http.HandlerFunc(ds.handle))
	return ds
}

// AddListing serves HTML at path.
func (ds *DocServer) AddListing(path, html string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.listings[path] = html
}

// AddDocument serves body at path with a document content type.
func (ds *DocServer) AddDocument(path string, body []byte) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.documents[path] = body
}

// ForceStatus answers path with an HTTP error status.
func (ds *DocServer) ForceStatus(path string, status int) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.statuses[path] = status
}

// ServeBlockPage answers path with a 200 Access Denied interstitial.
func (ds *DocServer) ServeBlockPage(path string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.blockHTML[path] = true
}

// Clear removes a forced status or block page so later requests succeed.
func (ds *DocServer) Clear(path string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	delete(ds.statuses, path)
	delete(ds.blockHTML, path)
}

// SetLatency delays every response from path.
func (ds *DocServer) SetLatency(path string, d time.Duration) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.latency[path] = d
}

// Hits returns how many GET requests path received.
func (ds *DocServer) Hits(path string) int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.getHits[path]
}

// HeadHits returns how many HEAD requests path received.
func (ds *DocServer) HeadHits(path string) int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.headHits[path]
}

// DocURL returns the absolute URL for a served path.
func (ds *DocServer) DocURL(path string) string {
	return ds.Server.URL + path
}

func (ds *DocServer) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	ds.mu.Lock()
	if r.Method == http.MethodHead {
		ds.headHits[path]++
	} else {
		ds.getHits[path]++
	}
	ds.mu.Unlock()

	ds.mu.RLock()
	status, forced := ds.statuses[path]
	blocked := ds.blockHTML[path]
	listing, isListing := ds.listings[path]
	body, isDocument := ds.documents[path]
	delay := ds.latency[path]
	ds.mu.RUnlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	switch {
	case forced:
		http.Error(w, http.StatusText(status), status)

	case blocked:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(BlockPageHTML))

	case isListing:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte(listing))

	case isDocument:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(body)

	default:
		http.NotFound(w, r)
	}
}
