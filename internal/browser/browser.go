package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/alanbriolat/stream-archiver/internal/pubsub"
)

type Config struct {
	// Bin is the browser executable to launch; empty means use the first
	// system browser found, falling back to a managed download.
	Bin string
	// Headless hides the browser window; interactive login needs it false.
	Headless bool
	// EventBufSize is the buffer size of the download event publisher.
	EventBufSize int
}

var DefaultConfig = Config{
	Headless:     false,
	EventBufSize: 16,
}

// A Session owns one running browser instance and the stream of download
// lifecycle events coming out of it.
type Session interface {
	// NewPage opens a blank tab whose operations are bound to ctx.
	NewPage(ctx context.Context) (Page, error)
	// AllowDownloads directs every download into dir, with the transfer GUID as
	// the provisional filename, and enables download lifecycle events.
	AllowDownloads(dir string) error
	// SubscribeDownloads returns a new subscription to download events.
	SubscribeDownloads() (pubsub.ReceiverCloser[DownloadEvent], error)
	// Cookies exports all cookies of the browser instance.
	Cookies() ([]*proto.NetworkCookie, error)
	// SetCookies imports cookies into the browser instance.
	SetCookies(cookies []*proto.NetworkCookieParam) error
	// Close shuts down the event stream, the browser, and its process.
	Close()
}

type session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	events   pubsub.Publisher[DownloadEvent]
	log      *zap.SugaredLogger
}

// NewSession launches a browser according to cfg and connects to it; the
// browser dies with ctx at the latest.
func NewSession(ctx context.Context, cfg Config) (Session, error) {
	s := &session{
		events: pubsub.NewPublisherBufSize[DownloadEvent](cfg.EventBufSize),
		log:    zap.S().Named("browser"),
	}

	bin := cfg.Bin
	if bin == "" {
		// Prefer the user's own browser; a managed Chromium build has no
		// existing profile and tends to trip bot detection during login.
		path, _ := launcher.LookPath()
		bin = path
	}
	l := launcher.New().
		Headless(cfg.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("exclude-switches", "enable-automation").
		Set("use-automation-extension", "false")
	if bin != "" {
		s.log.Debugf("using browser binary %v", bin)
		l = l.Bin(bin)
	}
	if !cfg.Headless {
		l = l.Set("start-maximized")
	}
	s.launcher = l

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	s.browser = rod.New().ControlURL(u).Context(ctx)
	if err = s.browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	go s.pumpEvents()
	return s, nil
}

func (s *session) NewPage(ctx context.Context) (Page, error) {
	p, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	return &page{p: p.Context(ctx)}, nil
}

func (s *session) AllowDownloads(dir string) error {
	return proto.BrowserSetDownloadBehavior{
		Behavior:      proto.BrowserSetDownloadBehaviorBehaviorAllowAndName,
		DownloadPath:  dir,
		EventsEnabled: true,
	}.Call(s.browser)
}

func (s *session) SubscribeDownloads() (pubsub.ReceiverCloser[DownloadEvent], error) {
	return s.events.Subscribe()
}

func (s *session) Cookies() ([]*proto.NetworkCookie, error) {
	return s.browser.GetCookies()
}

func (s *session) SetCookies(cookies []*proto.NetworkCookieParam) error {
	return s.browser.SetCookies(cookies)
}

func (s *session) Close() {
	s.events.Close()
	if err := s.browser.Close(); err != nil {
		s.log.Debugf("error closing browser: %v", err)
	}
	s.launcher.Kill()
	s.launcher.Cleanup()
}

// pumpEvents republishes browser download notifications until the browser
// connection ends. Event order is preserved, which the download correlator
// depends on.
func (s *session) pumpEvents() {
	defer s.events.Close()
	s.browser.EachEvent(
		func(e *proto.BrowserDownloadWillBegin) {
			s.log.Debugw("download started", "guid", e.GUID, "suggested_filename", e.SuggestedFilename)
			s.events.Send(DownloadStarted{
				GUID:              e.GUID,
				URL:               e.URL,
				SuggestedFilename: e.SuggestedFilename,
			})
		},
		func(e *proto.BrowserDownloadProgress) {
			s.events.Send(DownloadUpdated{
				GUID:          e.GUID,
				State:         downloadState(e.State),
				ReceivedBytes: int64(e.ReceivedBytes),
				TotalBytes:    int64(e.TotalBytes),
			})
		},
	)()
}

func downloadState(s proto.BrowserDownloadProgressState) DownloadState {
	switch s {
	case proto.BrowserDownloadProgressStateCompleted:
		return DownloadCompleted
	case proto.BrowserDownloadProgressStateCanceled:
		return DownloadCanceled
	default:
		return DownloadInProgress
	}
}
