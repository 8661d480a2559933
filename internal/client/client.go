package client

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ColonelPanicX/comply-with-me/internal/config"
	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/fetch"
	"github.com/ColonelPanicX/comply-with-me/internal/fingerprint"
	"github.com/ColonelPanicX/comply-with-me/internal/manifest"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/report"
	"github.com/ColonelPanicX/comply-with-me/internal/services/sync"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
	"github.com/ColonelPanicX/comply-with-me/internal/storage"
	"github.com/ColonelPanicX/comply-with-me/internal/transport"
)

// browserConnectTimeout bounds the initial DevTools handshake so a dead
// endpoint degrades to direct-only fetching instead of hanging startup.
const browserConnectTimeout = 15 * time.Second

// Client provides the high-level API for document sync operations.
type Client struct {
	Sources *sources.Registry
	Sync    *sync.Service
	State   StateManager

	config  *config.Config
	logger  *events.Logger
	http    transport.Client
	browser *transport.CDPClient
	state   fingerprint.Store
	content *storage.LocalStore
}

// StateManager provides read and reset access to persisted sync state.
type StateManager interface {
	ListStates() ([]*StateInfo, error)
	LoadState(sourceID string) (*models.SourceState, error)
	Reset(sourceID string) error
}

// StateInfo summarizes one source's persisted state.
type StateInfo struct {
	SourceID     string
	Documents    int
	LastRunID    string
	LastSyncTime time.Time
	LastError    string
}

// New wires configuration into a ready client. A configured browser
// endpoint is dialed eagerly; if Chrome is unreachable the client still
// works, minus the rendered fetch tier.
func New(cfg *config.Config, logger *events.Logger) (*Client, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare data directories: %w", err)
	}

	httpClient := transport.NewHTTPClient(&cfg.HTTP, logger)

	var browser *transport.CDPClient
	if cfg.Browser.Endpoint != "" {
		cdp := transport.NewCDPClient(&cfg.Browser, logger)

		ctx, cancel := context.WithTimeout(context.Background(), browserConnectTimeout)
		err := cdp.Connect(ctx)
		cancel()

		if err != nil {
			logger.WithError(err).
				WithField("endpoint", cfg.Browser.Endpoint).
				Warn("Browser unavailable; rendered fetches disabled")
		} else {
			browser = cdp
		}
	}

	stateStore, err := newStateStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create state store: %w", err)
	}

	contentStore, err := storage.NewLocalStore(cfg.Storage.ContentDir, logger)
	if err != nil {
		return nil, fmt.Errorf("create content store: %w", err)
	}
	contentStore.SetMaxFileSize(cfg.Storage.MaxFileSize)

	reportStore, err := storage.NewLocalStore(cfg.Storage.ReportDir, logger)
	if err != nil {
		return nil, fmt.Errorf("create report store: %w", err)
	}

	registry, err := sources.NewRegistry(logger)
	if err != nil {
		return nil, fmt.Errorf("create source registry: %w", err)
	}
	if cfg.Storage.SourcesFile != "" {
		if err := registry.LoadOverlay(cfg.Storage.SourcesFile); err != nil {
			return nil, fmt.Errorf("load sources overlay: %w", err)
		}
	}

	// A nil *CDPClient must stay a nil interface, or the discoverers
	// would try to render through a dead client.
	var renderer manifest.Renderer
	if browser != nil {
		renderer = browser
	}
	builder := manifest.NewBuilder(httpClient, renderer, cfg, logger)

	direct := fetch.NewDirectFetcher(httpClient, logger)

	var rendered fetch.Fetcher
	if browser != nil {
		rendered = fetch.NewRenderedFetcher(&browserPages{cdp: browser}, logger)
	}
	ladder := fetch.NewLadder(direct, rendered, logger)

	engine := sync.NewEngine(
		registry,
		builder,
		ladder,
		httpClient,
		stateStore,
		contentStore,
		report.NewWriter(reportStore, logger),
		cfg.Sync.DownloadWorkers,
		logger,
	)
	ladder.OnEscalate = engine.NotifyEscalation

	return &Client{
		Sources: registry,
		Sync:    sync.NewService(registry, engine, logger),
		State:   &stateManager{store: stateStore},
		config:  cfg,
		logger:  logger,
		http:    httpClient,
		browser: browser,
		state:   stateStore,
		content: contentStore,
	}, nil
}

// newStateStore selects the fingerprint backend from config.
func newStateStore(cfg *config.Config, logger *events.Logger) (fingerprint.Store, error) {
	switch cfg.Storage.StateBackend {
	case "sqlite":
		return fingerprint.NewSQLiteStore(filepath.Join(cfg.Storage.StateDir, "state.db"), logger)
	case "", "json":
		return fingerprint.NewJSONStore(cfg.Storage.StateDir, logger)
	default:
		return nil, fmt.Errorf("%w: unknown state backend %q",
			models.ErrInvalidConfig, cfg.Storage.StateBackend)
	}
}

// Close releases the browser connection, state store, and idle HTTP
// connections.
func (c *Client) Close() error {
	var errs []error

	if c.browser != nil {
		if err := c.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if err := c.state.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close state store: %w", err))
	}
	if err := c.http.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transport: %w", err))
	}

	return errors.Join(errs...)
}

// BrowserConnected reports whether the rendered fetch tier is available.
func (c *Client) BrowserConnected() bool {
	return c.browser != nil
}

// browserPages adapts the DevTools client to the fetch.Browser interface.
type browserPages struct {
	cdp *transport.CDPClient
}

func (b *browserPages) NewPage(ctx context.Context) (fetch.PageSession, error) {
	return b.cdp.NewPage(ctx)
}

// stateManager implements StateManager over a fingerprint store.
type stateManager struct {
	store fingerprint.Store
}

func (sm *stateManager) ListStates() ([]*StateInfo, error) {
	sourceIDs, err := sm.store.List()
	if err != nil {
		return nil, err
	}

	var states []*StateInfo
	for _, sourceID := range sourceIDs {
		st, err := sm.store.Load(sourceID)
		if err != nil {
			continue // Skip states that can't be loaded
		}

		states = append(states, &StateInfo{
			SourceID:     st.SourceID,
			Documents:    st.RecordCount(),
			LastRunID:    st.LastRunID,
			LastSyncTime: st.LastSyncTime,
			LastError:    st.LastError,
		})
	}

	return states, nil
}

func (sm *stateManager) LoadState(sourceID string) (*models.SourceState, error) {
	return sm.store.Load(sourceID)
}

func (sm *stateManager) Reset(sourceID string) error {
	return sm.store.Reset(sourceID)
}
