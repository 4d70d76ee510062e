package cookies

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Prober is the slice of a page the login gate needs.
type Prober interface {
	Has(sel string) (bool, error)
}

// A Gate decides whether the restored session is already authenticated, and
// if not, waits for a human to log in through the visible browser window.
type Gate struct {
	probeSel string
	interval time.Duration
	log      *zap.SugaredLogger
}

func NewGate(probeSel string) *Gate {
	return &Gate{
		probeSel: probeSel,
		interval: time.Second,
		log:      zap.S().Named("session"),
	}
}

// IsLoggedIn probes the current DOM for the logged-in marker, without
// waiting.
func (g *Gate) IsLoggedIn(page Prober) bool {
	has, err := page.Has(g.probeSel)
	if err != nil {
		g.log.Debugf("login probe failed: %v", err)
		return false
	}
	return has
}

// AwaitLogin blocks until the logged-in marker appears. This is the one
// intentionally unbounded wait in the whole pipeline, because a human is on
// the other end of it; only ctx can cut it short.
func (g *Gate) AwaitLogin(ctx context.Context, page Prober) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		if g.IsLoggedIn(page) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
