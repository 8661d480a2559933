package events_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
)

func TestFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return default logger when none in context
	logger := events.FromContext(ctx)
	assert.NotNil(t, logger)
}

func TestWithLogger(t *testing.T) {
	ctx := context.Background()
	logger := &events.Logger{}

	ctx = events.WithLogger(ctx, logger)
	retrieved := events.FromContext(ctx)

	assert.Equal(t, logger, retrieved)
}

func TestWithRunID(t *testing.T) {
	ctx := context.Background()
	runID := "run-123"

	ctx = events.WithRunID(ctx, runID)
	retrieved := events.GetRunID(ctx)

	assert.Equal(t, runID, retrieved)

	// Should also add to logger fields
	logger := events.FromContext(ctx)
	assert.NotNil(t, logger)
}

func TestWithSourceID(t *testing.T) {
	ctx := context.Background()
	sourceID := "fedramp"

	ctx = events.WithSourceID(ctx, sourceID)
	retrieved := events.GetSourceID(ctx)

	assert.Equal(t, sourceID, retrieved)

	// Should also add to logger fields
	logger := events.FromContext(ctx)
	assert.NotNil(t, logger)
}

func TestGetRunIDEmpty(t *testing.T) {
	ctx := context.Background()
	id := events.GetRunID(ctx)
	assert.Empty(t, id)
}

func TestGetSourceIDEmpty(t *testing.T) {
	ctx := context.Background()
	id := events.GetSourceID(ctx)
	assert.Empty(t, id)
}

func TestSetDefault(t *testing.T) {
	customLogger := &events.Logger{}
	events.SetDefault(customLogger)

	ctx := context.Background()
	retrieved := events.FromContext(ctx)

	assert.Equal(t, customLogger, retrieved)
}
