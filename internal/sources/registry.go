package sources

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
)

// Registry holds the known sources in a stable order: built-ins first,
// overlay additions after, overrides keeping their original position.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*Source
	order   []string
	logger  *events.Logger
}

// NewRegistry creates a registry seeded with the built-in sources.
func NewRegistry(logger *events.Logger) (*Registry, error) {
	r := &Registry{
		sources: make(map[string]*Source),
		logger:  logger.WithField("component", "source_registry"),
	}

	for _, src := range Builtins() {
		if err := r.Add(src); err != nil {
			return nil, fmt.Errorf("register built-in: %w", err)
		}
	}

	return r, nil
}

// Add validates and registers a source, replacing any existing
// definition with the same ID.
func (r *Registry) Add(src *Source) error {
	if err := src.Validate(); err != nil {
		return err
	}

	if src.LinkPattern != "" {
		// Validate() already proved this compiles
		src.pattern = regexp.MustCompile(src.LinkPattern)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[src.ID]; !exists {
		r.order = append(r.order, src.ID)
	} else {
		r.logger.WithField("source_id", src.ID).Debug("Overriding source definition")
	}
	r.sources[src.ID] = src

	return nil
}

// Get returns a source by ID.
func (r *Registry) Get(id string) (*Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.sources[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSourceUnknown, id)
	}
	return src, nil
}

// List returns all sources in registration order.
func (r *Registry) List() []*Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Source, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sources[id])
	}
	return out
}

// IDs returns all source IDs in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// overlayFile is the schema of a sources.yaml overlay.
type overlayFile struct {
	Sources []*Source `yaml:"sources"`
}

// LoadOverlay merges a YAML overlay file into the registry. Every
// definition is validated before any is applied, and all validation
// problems are reported together.
func (r *Registry) LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sources file: %w", err)
	}

	var overlay overlayFile
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse sources file: %w", err)
	}

	if len(overlay.Sources) == 0 {
		return fmt.Errorf("sources file %s defines no sources", path)
	}

	var problems []string
	seen := make(map[string]bool)
	for _, src := range overlay.Sources {
		if err := src.Validate(); err != nil {
			problems = append(problems, err.Error())
			continue
		}
		if seen[src.ID] {
			problems = append(problems, fmt.Sprintf("source %s: defined twice in overlay", src.ID))
		}
		seen[src.ID] = true
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid sources file %s:\n  %s", path, strings.Join(problems, "\n  "))
	}

	for _, src := range overlay.Sources {
		if err := r.Add(src); err != nil {
			return err
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"path":  path,
		"count": len(overlay.Sources),
	}).Info("Loaded source overlay")

	return nil
}
