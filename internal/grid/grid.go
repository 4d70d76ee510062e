// Package grid expands an infinite-scroll video grid until the whole library
// is present in the DOM.
package grid

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alanbriolat/stream-archiver/internal/browser"
)

type Config struct {
	// SettleInterval is how long the page gets to grow after each scroll
	// before the height is sampled again.
	SettleInterval time.Duration
	// MaxRounds caps the number of scroll iterations, for pages that never
	// stop growing.
	MaxRounds int
}

var DefaultConfig = Config{
	SettleInterval: 2 * time.Second,
	MaxRounds:      500,
}

type Loader struct {
	cfg Config
	log *zap.SugaredLogger
}

func NewLoader(cfg Config) *Loader {
	return &Loader{
		cfg: cfg,
		log: zap.S().Named("grid"),
	}
}

// LoadAll scrolls to the bottom of the page until a full settle interval
// passes without the scroll height advancing, then returns the elements
// matching itemSel. Hitting the round cap is not an error: whatever has
// loaded by then is returned.
func (l *Loader) LoadAll(ctx context.Context, page browser.Page, itemSel string) ([]browser.Element, error) {
	height, err := page.ScrollHeight()
	if err != nil {
		return nil, fmt.Errorf("read scroll height: %w", err)
	}
	stable := false
	for round := 1; round <= l.cfg.MaxRounds; round++ {
		if err := page.ScrollToBottom(); err != nil {
			return nil, fmt.Errorf("scroll to bottom: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.cfg.SettleInterval):
		}
		next, err := page.ScrollHeight()
		if err != nil {
			return nil, fmt.Errorf("read scroll height: %w", err)
		}
		if next == height {
			l.log.Debugf("grid stopped growing after %d round(s) at height %d", round, next)
			stable = true
			break
		}
		l.log.Debugf("grid grew %d -> %d (round %d)", height, next, round)
		height = next
	}
	if !stable {
		l.log.Warnf("grid still growing after %d rounds, continuing with what has loaded", l.cfg.MaxRounds)
	}
	items, err := page.Elements(itemSel)
	if err != nil {
		return nil, fmt.Errorf("list grid items: %w", err)
	}
	l.log.Infof("grid expansion finished: %d item(s)", len(items))
	return items, nil
}
