package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"readsync/internal/modules/sync/domain"
	"readsync/internal/platform/clock"
)

// StateExporter assembles the current full-state document from local stores.
type StateExporter func(ctx context.Context) (domain.FullState, error)

// Coordinator debounces full-state exports. Bursts of local changes within
// the window collapse into a single publish carrying the final state.
type Coordinator struct {
	mu            sync.Mutex
	timer         *time.Timer
	window        time.Duration
	export        StateExporter
	outbox        *Outbox
	clock         clock.Clock
	log           zerolog.Logger
	lastPublished time.Time
}

func NewCoordinator(window time.Duration, export StateExporter, outbox *Outbox, clk clock.Clock, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		window: window,
		export: export,
		outbox: outbox,
		clock:  clk,
		log:    log.With().Str("component", "coordinator").Logger(),
	}
}

// Request schedules an export after the debounce window. A request arriving
// while one is pending resets the timer instead of stacking a second export.
func (c *Coordinator) Request() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Reset(c.window)
		return
	}
	c.timer = time.AfterFunc(c.window, func() {
		c.mu.Lock()
		c.timer = nil
		c.mu.Unlock()
		c.publish(context.Background())
	})
}

// Flush cancels any pending timer and exports immediately.
func (c *Coordinator) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	return c.publish(ctx)
}

// Stop cancels a pending export without publishing.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// LastPublishedAt reports when the most recent export succeeded.
func (c *Coordinator) LastPublishedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPublished
}

func (c *Coordinator) publish(ctx context.Context) error {
	state, err := c.export(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("state export failed")
		return err
	}
	if err := c.outbox.PublishState(ctx, state); err != nil {
		return err
	}
	c.mu.Lock()
	c.lastPublished = c.clock.Now()
	c.mu.Unlock()
	return nil
}
