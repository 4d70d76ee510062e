package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/stream-archiver"
	"github.com/alanbriolat/stream-archiver/internal/browser"
	"github.com/alanbriolat/stream-archiver/internal/correlate"
)

// processItem runs one grid item through the whole pipeline. A non-nil error
// means the run itself must stop (interruption); item-level failures end up
// in the summary instead.
func (a *Archiver) processItem(
	ctx context.Context,
	page browser.Page,
	item browser.Element,
	correlator *correlate.Correlator,
	summary *Summary,
) error {
	html, err := item.HTML()
	if err != nil {
		a.itemFailed(summary, nil, fmt.Errorf("failed to read item markup: %w", err))
		return nil
	}
	record, err := a.extract.Record(html)
	if err != nil {
		a.itemFailed(summary, nil, err)
		return nil
	}
	if err := record.Validate(); err != nil {
		a.itemFailed(summary, record, err)
		return nil
	}
	log := a.log.With("uuid", record.UUID)

	if a.ledger.Contains(record.UUID) {
		summary.Skipped++
		log.Debugf("already recorded, skipping: %v", record)
		a.events.Send(ItemSkipped{itemEvent{record}})
		return nil
	}
	a.events.Send(ItemStarted{itemEvent{record}})

	if record.Private {
		a.updateRecord(record, func(r *stream_archiver.VideoRecord) {
			r.Filename = stream_archiver.NotDownloadable
		})
		if err := a.ledger.Append(record); err != nil {
			a.itemFailed(summary, record, err)
			return nil
		}
		summary.Private++
		log.Infof("not downloadable: %v", record)
		a.events.Send(ItemPrivate{itemEvent{record}})
		return nil
	}

	pending, err := correlator.Arm(record)
	if err != nil {
		a.itemFailed(summary, record, err)
		return nil
	}
	if err := a.interact.TriggerDownload(page, item); err != nil {
		pending.Cancel()
		a.itemFailed(summary, record, err)
		return nil
	}
	filename, err := pending.Await(ctx, a.progressFunc(record))
	if err != nil {
		// Interruption aborts the run; everything else just fails the item
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.itemFailed(summary, record, err)
		return nil
	}
	a.updateRecord(record, func(r *stream_archiver.VideoRecord) {
		r.Filename = filename
	})
	if err := a.ledger.Append(record); err != nil {
		a.itemFailed(summary, record, err)
		return nil
	}
	summary.Archived++
	log.Infof("archived %v as %v", record, filename)
	a.events.Send(ItemCompleted{itemEvent{record}, filename})
	return nil
}

// updateRecord applies a mutation and announces the state change.
func (a *Archiver) updateRecord(record *stream_archiver.VideoRecord, f func(r *stream_archiver.VideoRecord)) {
	old := *record
	f(record)
	if *record != old {
		a.events.Send(ItemUpdated{itemEvent{record}, old, *record})
	}
}

// progressFunc adapts correlator progress callbacks into rate-limited
// ItemProgress events.
func (a *Archiver) progressFunc(record *stream_archiver.VideoRecord) func(received, total int64) {
	var last time.Time
	return func(received, total int64) {
		now := time.Now()
		if now.Sub(last) < a.config.ProgressUpdateInterval {
			return
		}
		last = now
		a.events.Send(ItemProgress{itemEvent{record}, received, total})
	}
}

func (a *Archiver) itemFailed(summary *Summary, record *stream_archiver.VideoRecord, err error) {
	summary.Failed++
	if record != nil {
		err = multierror.Prefix(err, fmt.Sprintf("[%s]", record.UUID))
	}
	summary.errors = multierror.Append(summary.errors, err)
	a.log.Warnf("item failed: %v", err)
	a.events.Send(ItemFailed{itemEvent{record}, err})
}

// Summary accumulates the outcome counts of a run. Every item found lands in
// exactly one of the other counts.
type Summary struct {
	Found    int
	Archived int
	Private  int
	Skipped  int
	Failed   int

	errors *multierror.Error
}

func (s *Summary) String() string {
	return fmt.Sprintf("%d found: %d archived, %d private, %d skipped, %d failed",
		s.Found, s.Archived, s.Private, s.Skipped, s.Failed)
}

// Err returns the accumulated item-level failures, or nil if there were none.
func (s *Summary) Err() error {
	return s.errors.ErrorOrNil()
}
