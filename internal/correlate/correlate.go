package correlate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alanbriolat/stream-archiver"
	"github.com/alanbriolat/stream-archiver/internal/browser"
	"github.com/alanbriolat/stream-archiver/internal/pubsub"
	sync_ "github.com/alanbriolat/stream-archiver/internal/sync"
)

var (
	// ErrAlreadyArmed means a second item tried to arm the correlator while a
	// download was still unresolved; the orchestrator sequences items exactly
	// to prevent this.
	ErrAlreadyArmed = errors.New("correlator already armed")
	// ErrDownloadCanceled means the browser reported the captured transfer as
	// canceled rather than completed.
	ErrDownloadCanceled = errors.New("download canceled by browser")
)

type Config struct {
	// StartTimeout bounds the wait between triggering the gesture and the
	// browser reporting a download started.
	StartTimeout time.Duration
	// ProgressTimeout bounds the wait for the next progress notification once
	// a transfer is captured; every notification resets it.
	ProgressTimeout time.Duration
}

var DefaultConfig = Config{
	StartTimeout:    30 * time.Second,
	ProgressTimeout: 2 * time.Minute,
}

// A Correlator attributes browser download notifications to the grid item
// whose gesture triggered them. The browser only identifies transfers by an
// opaque GUID, so attribution is purely positional: exactly one item may be
// armed at a time, and the first "download started" seen while armed is taken
// to be that item's transfer. Everything else is ignored.
//
// The event subscription is drained continuously on a dedicated goroutine,
// whether or not anything is armed, so notifications never back up between
// items.
type Correlator struct {
	cfg     Config
	dir     string
	naming  stream_archiver.NamingConfig
	events  pubsub.ReceiverCloser[browser.DownloadEvent]
	log     *zap.SugaredLogger
	mu      sync.Mutex
	pending *Pending
}

// New starts a Correlator draining events; the caller hands over ownership of
// the subscription and must Close the correlator to end it. Completed
// transfers are renamed from their GUID to the canonical name inside dir.
func New(dir string, naming stream_archiver.NamingConfig, events pubsub.ReceiverCloser[browser.DownloadEvent], cfg Config) *Correlator {
	c := &Correlator{
		cfg:    cfg,
		dir:    dir,
		naming: naming,
		events: events,
		log:    zap.S().Named("correlate"),
	}
	go c.run()
	return c
}

// Arm registers interest in the next "download started" notification on
// behalf of record. Must happen before the triggering gesture, otherwise the
// notification can be lost. Fails with ErrAlreadyArmed while another item is
// unresolved.
func (c *Correlator) Arm(record *stream_archiver.VideoRecord) (*Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return nil, ErrAlreadyArmed
	}
	p := &Pending{
		c:        c,
		record:   record,
		started:  sync_.NewEvent(),
		done:     sync_.NewEvent(),
		progress: make(chan browser.DownloadUpdated, 1),
	}
	c.pending = p
	c.log.Debugw("armed", "uuid", record.UUID)
	return p, nil
}

func (c *Correlator) Close() {
	c.events.Close()
}

func (c *Correlator) run() {
	for ev := range c.events.Receive() {
		c.mu.Lock()
		p := c.pending
		c.mu.Unlock()
		if p == nil {
			// Not armed: a transfer this run did not ask for
			c.log.Debugw("ignoring unattributed download event", "guid", ev.DownloadGUID())
			continue
		}
		switch e := ev.(type) {
		case browser.DownloadStarted:
			p.handleStarted(e)
		case browser.DownloadUpdated:
			p.handleProgress(e)
		}
	}
}

func (c *Correlator) release(p *Pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == p {
		c.pending = nil
	}
}

// A Pending is the single in-flight download slot: the rendezvous between the
// gesture that triggered item N and the asynchronous notifications about its
// transfer.
type Pending struct {
	c        *Correlator
	record   *stream_archiver.VideoRecord
	started  *sync_.Event
	done     *sync_.Event
	progress chan browser.DownloadUpdated
	// guid is written once by the dispatch goroutine before started is set;
	// outcome likewise before done is set.
	guid    string
	outcome browser.DownloadState
}

// handleStarted captures the transfer GUID at most once; any further
// "download started" while this slot is armed belongs to someone else.
func (p *Pending) handleStarted(e browser.DownloadStarted) {
	if p.started.IsSet() {
		p.c.log.Debugw("ignoring unexpected second download", "guid", e.GUID)
		return
	}
	p.guid = e.GUID
	p.started.Set()
	p.c.log.Debugw("captured transfer", "uuid", p.record.UUID, "guid", e.GUID)
}

func (p *Pending) handleProgress(e browser.DownloadUpdated) {
	if !p.started.IsSet() || e.GUID != p.guid || p.done.IsSet() {
		return
	}
	switch e.State {
	case browser.DownloadCompleted, browser.DownloadCanceled:
		p.outcome = e.State
		p.done.Set()
	default:
		// Conflate: only the latest progress matters to the waiter
		select {
		case p.progress <- e:
		default:
		}
	}
}

// Await blocks until the armed transfer resolves, then renames the finished
// file from its provisional GUID name to the canonical one and returns the
// final filename. Both waits are bounded: no captured transfer within
// StartTimeout, or no further notification within ProgressTimeout, fails with
// CorrelationTimeout. The slot is freed on return, whatever the outcome.
func (p *Pending) Await(ctx context.Context, onProgress func(received, total int64)) (string, error) {
	defer p.c.release(p)

	start := time.NewTimer(p.c.cfg.StartTimeout)
	defer start.Stop()
	select {
	case <-p.started.Wait():
	case <-start.C:
		return "", &stream_archiver.CorrelationTimeout{UUID: p.record.UUID, Phase: "start", Elapsed: p.c.cfg.StartTimeout}
	case <-ctx.Done():
		return "", ctx.Err()
	}

	idle := time.NewTimer(p.c.cfg.ProgressTimeout)
	defer idle.Stop()
	for {
		select {
		case <-p.done.Wait():
			if p.outcome == browser.DownloadCanceled {
				return "", fmt.Errorf("transfer %v: %w", p.guid, ErrDownloadCanceled)
			}
			return p.finalize()
		case e := <-p.progress:
			if onProgress != nil {
				onProgress(e.ReceivedBytes, e.TotalBytes)
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(p.c.cfg.ProgressTimeout)
		case <-idle.C:
			return "", &stream_archiver.CorrelationTimeout{UUID: p.record.UUID, Phase: "progress", Elapsed: p.c.cfg.ProgressTimeout}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Cancel frees the slot without waiting, for when the triggering gesture
// itself failed and no transfer is coming.
func (p *Pending) Cancel() {
	p.c.release(p)
}

// finalize moves the completed transfer to its canonical name. A rename
// failure leaves the GUID-named file in place and the item unresolved, so a
// later run retries it.
func (p *Pending) finalize() (string, error) {
	name, err := p.c.naming.GetTargetName(p.record)
	if err != nil {
		return "", &stream_archiver.PersistenceError{Op: "name", Path: p.guid, Err: err}
	}
	src := filepath.Join(p.c.dir, p.guid)
	dst := filepath.Join(p.c.dir, name)
	if _, err := os.Stat(dst); err == nil {
		// Canonical name already taken by a different item; disambiguate
		// deterministically rather than silently overwrite.
		name = disambiguate(name, p.record.UUID)
		dst = filepath.Join(p.c.dir, name)
		p.c.log.Warnf("canonical name collision, using %q", name)
	}
	if err := os.Rename(src, dst); err != nil {
		return "", &stream_archiver.PersistenceError{Op: "rename", Path: src, Err: err}
	}
	p.c.log.Debugw("renamed transfer", "guid", p.guid, "filename", name)
	return name, nil
}

func disambiguate(name, uuid string) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s [%s]%s", strings.TrimSuffix(name, ext), uuid, ext)
}
