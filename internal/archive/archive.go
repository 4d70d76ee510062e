// Package archive orchestrates a full export run: session restore, login
// gate, grid expansion, and the strictly sequential per-item
// extract/trigger/correlate/record pipeline.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/alanbriolat/stream-archiver"
	"github.com/alanbriolat/stream-archiver/internal/browser"
	"github.com/alanbriolat/stream-archiver/internal/cookies"
	"github.com/alanbriolat/stream-archiver/internal/correlate"
	"github.com/alanbriolat/stream-archiver/internal/extract"
	"github.com/alanbriolat/stream-archiver/internal/grid"
	"github.com/alanbriolat/stream-archiver/internal/interact"
	"github.com/alanbriolat/stream-archiver/internal/ledger"
	"github.com/alanbriolat/stream-archiver/internal/pubsub"
)

type Config struct {
	// Browser is the live browser session downloads will happen in.
	Browser browser.Session
	// Platform describes the site being exported from.
	Platform *stream_archiver.Platform
	// User is the profile/page whose video library is being exported.
	User string
	// TargetDir is where downloads, the ledger and the session state live.
	TargetDir string
	// Naming overrides how final filenames are derived; defaults to the
	// standard naming over TargetDir.
	Naming stream_archiver.NamingConfig

	NavigateTimeout time.Duration
	// WaitTimeout bounds each element wait during the download gesture.
	WaitTimeout time.Duration
	// MenuActionIndex is the 1-based position of the download action in the
	// item menu.
	MenuActionIndex int
	Grid            grid.Config
	Correlate       correlate.Config
	// Minimum interval between ItemProgress events from progress updates.
	ProgressUpdateInterval time.Duration
}

var DefaultConfig = Config{
	NavigateTimeout:        60 * time.Second,
	WaitTimeout:            10 * time.Second,
	MenuActionIndex:        3,
	Grid:                   grid.DefaultConfig,
	Correlate:              correlate.DefaultConfig,
	ProgressUpdateInterval: 500 * time.Millisecond,
}

type Archiver struct {
	config Config
	log    *zap.SugaredLogger

	naming   stream_archiver.NamingConfig
	ledger   *ledger.Ledger
	session  *cookies.Store
	gate     *cookies.Gate
	extract  *extract.Extractor
	interact *interact.Driver
	grid     *grid.Loader
	events   pubsub.Publisher[Event]
}

func New(config Config) (*Archiver, error) {
	if config.Browser == nil {
		return nil, errors.New("no browser session")
	}
	if config.Platform == nil {
		return nil, errors.New("no platform")
	}
	if config.User == "" {
		return nil, errors.New("no user")
	}
	if config.TargetDir == "" {
		return nil, errors.New("no target directory")
	}
	naming := config.Naming
	if naming == nil {
		naming = stream_archiver.NewNamingConfig(config.TargetDir)
	}
	a := &Archiver{
		config: config,
		log:    zap.S().Named("archive"),

		naming:   naming,
		ledger:   ledger.New(config.TargetDir),
		session:  cookies.NewStore(config.TargetDir),
		gate:     cookies.NewGate(config.Platform.Sel.LoggedIn),
		extract:  extract.New(config.Platform),
		interact: interact.NewDriver(config.Platform, config.WaitTimeout, config.MenuActionIndex),
		grid:     grid.NewLoader(config.Grid),
		events:   pubsub.NewPublisher[Event](),
	}
	return a, nil
}

func (a *Archiver) Subscribe() (pubsub.ReceiverCloser[Event], error) {
	return a.events.Subscribe()
}

// AddSubscriber attaches an externally-created sender to the event stream,
// e.g. one wrapped by pubsub.NewFilteredSender.
func (a *Archiver) AddSubscriber(s pubsub.SenderCloser[Event], close bool) error {
	return a.events.AddSubscriber(s, close)
}

// Close ends the event stream. Call after Run has returned.
func (a *Archiver) Close() {
	a.events.Close()
}

// Run performs one export run. Item-level failures are recorded in the
// Summary and never abort the run; the returned error is non-nil only for
// run-level failures (navigation, grid expansion, interruption).
func (a *Archiver) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	// The browser needs the target directory to exist before it can download
	// into it, and the ledger lives inside it.
	if err := os.MkdirAll(a.config.TargetDir, 0o755); err != nil {
		return summary, fmt.Errorf("failed to create target directory: %w", err)
	}
	if err := a.ledger.Init(); err != nil {
		return summary, err
	}

	if a.session.Restore(a.config.Browser) {
		a.log.Debugf("restored session state from %v", a.session.Path())
	}

	page, err := a.config.Browser.NewPage(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to open page: %w", err)
	}

	videosURL := a.config.Platform.VideosURL(a.config.User)
	if err := page.Navigate(videosURL, a.config.NavigateTimeout); err != nil {
		return summary, &stream_archiver.NavigationError{URL: videosURL, Err: err}
	}

	if !a.gate.IsLoggedIn(page) {
		if loginURL := a.config.Platform.LoginURL; loginURL != "" {
			if err := page.Navigate(loginURL, a.config.NavigateTimeout); err != nil {
				return summary, &stream_archiver.NavigationError{URL: loginURL, Err: err}
			}
		}
		a.log.Infof("not logged in to %s, complete the login in the browser window", a.config.Platform.Name)
		a.events.Send(LoginRequired{})
		if err := a.gate.AwaitLogin(ctx, page); err != nil {
			return summary, err
		}
		if err := page.Navigate(videosURL, a.config.NavigateTimeout); err != nil {
			return summary, &stream_archiver.NavigationError{URL: videosURL, Err: err}
		}
	}
	a.session.Save(a.config.Browser)

	if err := a.config.Browser.AllowDownloads(a.config.TargetDir); err != nil {
		return summary, fmt.Errorf("failed to redirect downloads: %w", err)
	}
	downloadEvents, err := a.config.Browser.SubscribeDownloads()
	if err != nil {
		return summary, fmt.Errorf("failed to subscribe to downloads: %w", err)
	}
	correlator := correlate.New(a.config.TargetDir, a.naming, downloadEvents, a.config.Correlate)
	defer correlator.Close()

	items, err := a.grid.LoadAll(ctx, page, a.config.Platform.Sel.Item)
	if err != nil {
		return summary, fmt.Errorf("failed to expand grid: %w", err)
	}
	summary.Found = len(items)
	a.events.Send(GridExpanded{ItemCount: len(items)})

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := a.processItem(ctx, page, item, correlator, summary); err != nil {
			return summary, err
		}
	}

	a.log.Infof("run finished: %v", summary)
	return summary, nil
}
