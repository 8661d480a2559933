package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ColonelPanicX/comply-with-me/internal/config"
	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
)

// CDPClient drives a headless Chrome instance over the DevTools
// protocol. It is used for sites that assemble their download links in
// JavaScript or sit behind bot checks that plain HTTP cannot pass.
type CDPClient struct {
	endpoint    string
	navTimeout  time.Duration
	evalTimeout time.Duration
	logger      *events.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	nextID int64

	pending map[int64]chan *cdpMessage
	waiters map[string]chan json.RawMessage
	done    chan struct{}
}

// cdpMessage covers commands, responses, and events on the wire.
type cdpMessage struct {
	ID        int64           `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *cdpError       `json:"error,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

type cdpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewCDPClient creates a DevTools client for the given debugging
// endpoint, e.g. http://127.0.0.1:9222.
func NewCDPClient(cfg *config.BrowserConfig, logger *events.Logger) *CDPClient {
	return &CDPClient{
		endpoint:    cfg.Endpoint,
		navTimeout:  cfg.NavTimeout,
		evalTimeout: cfg.EvalTimeout,
		logger:      logger.WithField("component", "cdp_client"),
		pending:     make(map[int64]chan *cdpMessage),
		waiters:     make(map[string]chan json.RawMessage),
		done:        make(chan struct{}),
	}
}

// Connect resolves the browser's WebSocket debugger URL and dials it.
// Failures wrap models.ErrBrowserUnavailable so callers can fall back
// to other acquisition strategies.
func (c *CDPClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	wsURL, err := c.resolveDebuggerURL(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrBrowserUnavailable, err)
	}

	c.logger.WithField("url", wsURL).Info("Connecting to browser")

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		// Chrome rejects frames over 1MB by default; rendered pages
		// and base64 payloads need more.
		ReadBufferSize:  4 * 1024 * 1024,
		WriteBufferSize: 1024 * 1024,
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("%w: handshake failed (HTTP %d): %v",
				models.ErrBrowserUnavailable, resp.StatusCode, err)
		}
		return fmt.Errorf("%w: %v", models.ErrBrowserUnavailable, err)
	}

	c.conn = conn
	c.closed = false

	go c.readLoop()

	c.logger.Info("Browser connected")
	return nil
}

// resolveDebuggerURL asks the browser's HTTP endpoint for its
// WebSocket debugger URL.
func (c *CDPClient) resolveDebuggerURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"/json/version", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("query version: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("version endpoint returned HTTP %d", resp.StatusCode)
	}

	var version struct {
		Browser           string `json:"Browser"`
		WebSocketDebugger string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return "", fmt.Errorf("parse version: %w", err)
	}

	if version.WebSocketDebugger == "" {
		return "", fmt.Errorf("no debugger URL in version response")
	}

	c.logger.WithField("browser", version.Browser).Debug("Resolved debugger URL")
	return version.WebSocketDebugger, nil
}

// Close closes the browser connection.
func (c *CDPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)

	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

		err := c.conn.Close()
		c.conn = nil
		return err
	}

	return nil
}

// call sends a command and waits for its response.
func (c *CDPClient) call(ctx context.Context, sessionID, method string, params, result interface{}) error {
	c.mu.Lock()
	if c.conn == nil || c.closed {
		c.mu.Unlock()
		return fmt.Errorf("not connected")
	}

	c.nextID++
	id := c.nextID
	ch := make(chan *cdpMessage, 1)
	c.pending[id] = ch

	msg := map[string]interface{}{
		"id":     id,
		"method": method,
	}
	if params != nil {
		msg["params"] = params
	}
	if sessionID != "" {
		msg["sessionId"] = sessionID
	}

	err := c.conn.WriteJSON(msg)
	c.mu.Unlock()

	if err != nil {
		c.dropPending(id)
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return fmt.Errorf("%s failed: %s (code %d)", method, resp.Error.Message, resp.Error.Code)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("parse %s result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.dropPending(id)
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("connection closed")
	}
}

// expectEvent registers a one-shot waiter for a session event. It must
// be registered before the command that triggers the event is sent.
func (c *CDPClient) expectEvent(sessionID, method string) <-chan json.RawMessage {
	ch := make(chan json.RawMessage, 1)

	c.mu.Lock()
	c.waiters[sessionID+" "+method] = ch
	c.mu.Unlock()

	return ch
}

func (c *CDPClient) dropPending(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// readLoop routes responses to pending calls and events to waiters.
func (c *CDPClient) readLoop() {
	defer func() {
		_ = c.Close()

		// Fail anything still waiting
		c.mu.Lock()
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
	}()

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		var msg cdpMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) {
				c.logger.WithError(err).Error("Browser read error")
			}
			return
		}

		if msg.ID != 0 {
			c.mu.Lock()
			ch, ok := c.pending[msg.ID]
			if ok {
				delete(c.pending, msg.ID)
			}
			c.mu.Unlock()

			if ok {
				ch <- &msg
			}
			continue
		}

		if msg.Method != "" {
			key := msg.SessionID + " " + msg.Method
			c.mu.Lock()
			ch, ok := c.waiters[key]
			if ok {
				delete(c.waiters, key)
			}
			c.mu.Unlock()

			if ok {
				ch <- msg.Params
			} else {
				c.logger.WithField("method", msg.Method).Debug("Unhandled browser event")
			}
		}
	}
}

// Page is an attached browser tab.
type Page struct {
	client    *CDPClient
	targetID  string
	sessionID string
}

// NewPage creates a fresh browser tab and attaches to it.
func (c *CDPClient) NewPage(ctx context.Context) (*Page, error) {
	var created struct {
		TargetID string `json:"targetId"`
	}
	err := c.call(ctx, "", "Target.createTarget",
		map[string]interface{}{"url": "about:blank"}, &created)
	if err != nil {
		return nil, fmt.Errorf("create target: %w", err)
	}

	var attached struct {
		SessionID string `json:"sessionId"`
	}
	err = c.call(ctx, "", "Target.attachToTarget",
		map[string]interface{}{"targetId": created.TargetID, "flatten": true}, &attached)
	if err != nil {
		return nil, fmt.Errorf("attach to target: %w", err)
	}

	page := &Page{
		client:    c,
		targetID:  created.TargetID,
		sessionID: attached.SessionID,
	}

	if err := c.call(ctx, page.sessionID, "Page.enable", nil, nil); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("enable page events: %w", err)
	}

	return page, nil
}

// RenderHTML navigates a fresh tab to a URL and returns the rendered
// markup. The tab is closed before returning.
func (c *CDPClient) RenderHTML(ctx context.Context, url string) (string, error) {
	page, err := c.NewPage(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = page.Close() }()

	if err := page.Navigate(ctx, url); err != nil {
		return "", err
	}

	return page.Content(ctx)
}

// Navigate loads a URL and waits for the page load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, p.client.navTimeout)
	defer cancel()

	loaded := p.client.expectEvent(p.sessionID, "Page.loadEventFired")

	var nav struct {
		FrameID   string `json:"frameId"`
		ErrorText string `json:"errorText"`
	}
	err := p.client.call(navCtx, p.sessionID, "Page.navigate",
		map[string]interface{}{"url": url}, &nav)
	if err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if nav.ErrorText != "" {
		return fmt.Errorf("navigate: %s", nav.ErrorText)
	}

	select {
	case <-loaded:
		return nil
	case <-navCtx.Done():
		return fmt.Errorf("page load: %w", navCtx.Err())
	case <-p.client.done:
		return fmt.Errorf("connection closed")
	}
}

// Evaluate runs a JavaScript expression in the page and decodes its
// value into out. The expression may return a promise.
func (p *Page) Evaluate(ctx context.Context, expression string, out interface{}) error {
	evalCtx, cancel := context.WithTimeout(ctx, p.client.evalTimeout)
	defer cancel()

	var result struct {
		Result struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text      string `json:"text"`
			Exception *struct {
				Description string `json:"description"`
			} `json:"exception"`
		} `json:"exceptionDetails"`
	}

	err := p.client.call(evalCtx, p.sessionID, "Runtime.evaluate", map[string]interface{}{
		"expression":    expression,
		"returnByValue": true,
		"awaitPromise":  true,
	}, &result)
	if err != nil {
		return err
	}

	if result.ExceptionDetails != nil {
		detail := result.ExceptionDetails.Text
		if result.ExceptionDetails.Exception != nil {
			detail = result.ExceptionDetails.Exception.Description
		}
		return fmt.Errorf("script failed: %s", detail)
	}

	if out != nil && len(result.Result.Value) > 0 {
		if err := json.Unmarshal(result.Result.Value, out); err != nil {
			return fmt.Errorf("parse script result: %w", err)
		}
	}

	return nil
}

// Content returns the rendered HTML of the page.
func (p *Page) Content(ctx context.Context) (string, error) {
	var html string
	err := p.Evaluate(ctx, "document.documentElement.outerHTML", &html)
	if err != nil {
		return "", err
	}
	return html, nil
}

// FetchBytes downloads a URL from inside the page using the page's own
// cookies and session, returning the raw bytes and content type. This
// is how documents behind JavaScript challenges are retrieved.
func (p *Page) FetchBytes(ctx context.Context, url string) ([]byte, string, error) {
	script := fmt.Sprintf(`(async () => {
		const resp = await fetch(%q, {credentials: 'include'});
		if (!resp.ok) {
			return {status: resp.status};
		}
		const buf = await resp.arrayBuffer();
		const bytes = new Uint8Array(buf);
		let binary = '';
		const chunk = 0x8000;
		for (let i = 0; i < bytes.length; i += chunk) {
			binary += String.fromCharCode.apply(null, bytes.subarray(i, i + chunk));
		}
		return {
			status: resp.status,
			contentType: resp.headers.get('content-type') || '',
			body: btoa(binary),
		};
	})()`, url)

	var result struct {
		Status      int    `json:"status"`
		ContentType string `json:"contentType"`
		Body        string `json:"body"`
	}
	if err := p.Evaluate(ctx, script, &result); err != nil {
		return nil, "", err
	}

	if result.Status < 200 || result.Status > 299 {
		return nil, "", &models.HTTPError{
			URL:        url,
			StatusCode: result.Status,
			Status:     fmt.Sprintf("%d (in-page fetch)", result.Status),
		}
	}

	data, err := base64.StdEncoding.DecodeString(result.Body)
	if err != nil {
		return nil, "", fmt.Errorf("decode payload: %w", err)
	}

	return data, result.ContentType, nil
}

// Close detaches from and closes the tab.
func (p *Page) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return p.client.call(ctx, "", "Target.closeTarget",
		map[string]interface{}{"targetId": p.targetID}, nil)
}
