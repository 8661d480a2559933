package sync

import (
	"context"
	"errors"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
)

// Service provides high-level sync operations.
type Service struct {
	registry *sources.Registry
	engine   *Engine
	logger   *events.Logger
}

// NewService creates a sync service around a configured engine.
func NewService(registry *sources.Registry, engine *Engine, logger *events.Logger) *Service {
	return &Service{
		registry: registry,
		engine:   engine,
		logger:   logger.WithField("service", "sync"),
	}
}

// Sync runs one source end to end and returns its report.
func (s *Service) Sync(ctx context.Context, sourceID string, opts Options) (*models.SyncReport, error) {
	return s.engine.Sync(ctx, sourceID, opts)
}

// SyncAll runs every registered source in registry order. A source-level
// failure is logged and the remaining sources still run; the joined
// errors come back alongside the reports that were produced.
func (s *Service) SyncAll(ctx context.Context, opts Options) ([]*models.SyncReport, error) {
	ids := s.registry.IDs()
	reports := make([]*models.SyncReport, 0, len(ids))

	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		report, err := s.engine.Sync(ctx, id, opts)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			s.logger.WithError(err).WithField("source_id", id).Error("Source sync failed")
			errs = append(errs, err)
		}
	}

	return reports, errors.Join(errs...)
}

// GetProgress returns sync progress.
func (s *Service) GetProgress() *Progress {
	return s.engine.GetProgress()
}

// Events returns the event channel.
func (s *Service) Events() <-chan Event {
	return s.engine.Events()
}

// Cancel stops an ongoing sync.
func (s *Service) Cancel() {
	s.engine.Cancel()
}
