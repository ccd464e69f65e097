// Package timewindow owns the current time selection over the fixed hourly
// horizon and the optional playback mode that advances it.
package timewindow

import (
	"context"
	"sync"
	"time"

	"github.com/lox/regionweather/internal/models"
)

const (
	// SkipStep is one day of hourly samples.
	SkipStep = 24

	DefaultTickInterval = 1 * time.Second
)

// Controller is the only mutator of the time window. Changes notify
// subscribers synchronously; the orchestrator reacts by recoloring.
type Controller struct {
	mu      sync.Mutex
	window  models.TimeWindow
	anchor  time.Time
	tick    time.Duration
	playing bool
	cancel  context.CancelFunc
	subs    []func(models.TimeWindow)
}

// NewController starts at an instant window on "now": hour 0 of the horizon
// is anchored 15 days before construction.
func NewController(tick time.Duration) *Controller {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	now := time.Now().UTC().Truncate(time.Hour)
	return &Controller{
		window: models.TimeWindow{Start: models.HorizonHours / 2, End: models.HorizonHours / 2, Mode: models.ModeInstant},
		anchor: now.AddDate(0, 0, -15),
		tick:   tick,
	}
}

// Subscribe registers a synchronous observer for window changes.
func (c *Controller) Subscribe(fn func(models.TimeWindow)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// Window returns the current selection.
func (c *Controller) Window() models.TimeWindow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window
}

// Anchor is the wall time of hour 0.
func (c *Controller) Anchor() time.Time {
	return c.anchor
}

// HorizonDates returns the ISO date span covering the whole axis, used for
// full-horizon weather queries.
func (c *Controller) HorizonDates() (startDate, endDate string) {
	end := c.anchor.Add(time.Duration(models.HorizonHours-1) * time.Hour)
	return c.anchor.Format("2006-01-02"), end.Format("2006-01-02")
}

// SetRange selects an interval. Bounds are silently clamped into the
// horizon; a start past the end collapses onto the end.
func (c *Controller) SetRange(start, end int) {
	c.mu.Lock()
	start = clamp(start, 0, models.HorizonHours)
	end = clamp(end, 0, models.HorizonHours)
	if start > end {
		start = end
	}
	c.window = models.TimeWindow{Start: start, End: end, Mode: models.ModeRange}
	w := c.window
	c.mu.Unlock()

	c.notify(w)
}

// SetInstant selects a single hour, silently clamped.
func (c *Controller) SetInstant(hour int) {
	c.mu.Lock()
	hour = clamp(hour, 0, models.HorizonHours)
	c.window = models.TimeWindow{Start: hour, End: hour, Mode: models.ModeInstant}
	w := c.window
	c.mu.Unlock()

	c.notify(w)
}

// SkipForward jumps one day ahead. In range mode edges are clamped
// independently, so width is preserved exactly when both directions fit.
func (c *Controller) SkipForward() {
	c.skip(SkipStep)
}

// SkipBack jumps one day back.
func (c *Controller) SkipBack() {
	c.skip(-SkipStep)
}

func (c *Controller) skip(step int) {
	c.mu.Lock()
	c.window.Start = clamp(c.window.Start+step, 0, models.HorizonHours)
	c.window.End = clamp(c.window.End+step, 0, models.HorizonHours)
	w := c.window
	c.mu.Unlock()

	c.notify(w)
}

// Play starts advancing the window by one hour per tick. Starting an already
// playing controller is a no-op.
func (c *Controller) Play() {
	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.playing = true
	c.cancel = cancel
	tick := c.tick
	c.mu.Unlock()

	go c.run(ctx, tick)
}

// Pause stops playback synchronously and idempotently. An in-flight tick may
// still complete after Pause returns; no further ticks fire.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.playing = false
	c.mu.Unlock()
}

// Playing reports whether playback is active.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// SetTickInterval adjusts playback speed; takes effect on the next Play.
func (c *Controller) SetTickInterval(tick time.Duration) {
	if tick <= 0 {
		return
	}
	c.mu.Lock()
	c.tick = tick
	c.mu.Unlock()
}

func (c *Controller) run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.step()
		}
	}
}

// step advances the window by one hour, preserving width in range mode, and
// auto-pauses when the advancing edge reaches the end of the horizon.
func (c *Controller) step() {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return
	}
	if c.window.End+1 > models.HorizonHours {
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		c.playing = false
		c.mu.Unlock()
		return
	}
	c.window.Start++
	c.window.End++
	w := c.window
	if c.window.End == models.HorizonHours {
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		c.playing = false
	}
	c.mu.Unlock()

	c.notify(w)
}

func (c *Controller) notify(w models.TimeWindow) {
	c.mu.Lock()
	subs := make([]func(models.TimeWindow), len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(w)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
