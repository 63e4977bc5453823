package push

import (
	"strings"
	"sync"
	"time"
)

type BurstMode string

const (
	BurstModeNone     BurstMode = "none"
	BurstModeCoalesce BurstMode = "coalesce"
	BurstModeDebounce BurstMode = "debounce"
)

type BurstOptions struct {
	Mode       BurstMode
	Window     time.Duration
	MaxEntries int
	Now        func() time.Time
}

// BurstController drops repeated notifications for the same version that
// arrive inside the window. Debounce mode restarts the window on every drop,
// coalesce mode only on accepted notifications.
type BurstController struct {
	mode       BurstMode
	window     time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[int]time.Time
}

func NewBurstController(opts BurstOptions) *BurstController {
	window := opts.Window
	if window <= 0 {
		window = 2 * time.Second
	}
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &BurstController{
		mode:       normalizeBurstMode(opts.Mode),
		window:     window,
		maxEntries: maxEntries,
		now:        now,
		entries:    map[int]time.Time{},
	}
}

// Allow reports whether n should be processed, plus metadata describing a drop.
func (c *BurstController) Allow(n Notification) (bool, map[string]any) {
	if c == nil || c.mode == BurstModeNone {
		return true, nil
	}
	now := c.now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()

	lastSeen, exists := c.entries[n.Version]
	if !exists || now.Sub(lastSeen) >= c.window {
		c.entries[n.Version] = now
		c.cleanup(now)
		return true, nil
	}

	metadata := map[string]any{
		"burst_mode":      string(c.mode),
		"version":         n.Version,
		"burst_window_ms": c.window.Milliseconds(),
	}
	if c.mode == BurstModeDebounce {
		c.entries[n.Version] = now
		metadata["debounced"] = true
	} else {
		metadata["coalesced"] = true
	}
	return false, metadata
}

// Forget removes version from the window so its next delivery is allowed.
func (c *BurstController) Forget(version int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, version)
	c.mu.Unlock()
}

func (c *BurstController) cleanup(now time.Time) {
	if len(c.entries) <= c.maxEntries {
		for version, seenAt := range c.entries {
			if now.Sub(seenAt) > c.window*4 {
				delete(c.entries, version)
			}
		}
		return
	}
	for version, seenAt := range c.entries {
		if now.Sub(seenAt) > c.window {
			delete(c.entries, version)
		}
		if len(c.entries) <= c.maxEntries {
			break
		}
	}
}

func normalizeBurstMode(mode BurstMode) BurstMode {
	switch strings.ToLower(strings.TrimSpace(string(mode))) {
	case string(BurstModeCoalesce):
		return BurstModeCoalesce
	case string(BurstModeDebounce):
		return BurstModeDebounce
	default:
		return BurstModeNone
	}
}
