package interact

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alanbriolat/stream-archiver"
	"github.com/alanbriolat/stream-archiver/internal/browser"
)

// A Driver performs the gesture sequence that makes the platform start a
// download for one grid item: hover the item to reveal its secondary control,
// hover that to open the action menu, click the download action.
//
// The download action is located by position, not label, because labels are
// localized. That ordinal is a known fragility of the platform UI, so it is
// configuration rather than a constant.
type Driver struct {
	platform    *stream_archiver.Platform
	waitTimeout time.Duration
	actionIndex int // 1-based position of the download action in the menu
	log         *zap.SugaredLogger
}

func NewDriver(platform *stream_archiver.Platform, waitTimeout time.Duration, actionIndex int) *Driver {
	return &Driver{
		platform:    platform,
		waitTimeout: waitTimeout,
		actionIndex: actionIndex,
		log:         zap.S().Named("interact"),
	}
}

// TriggerDownload runs the gesture sequence against one grid item. Each wait
// for a control is bounded by the driver's timeout; a control that never
// appears fails the item with an InteractionError, it never means "already
// downloaded". The download itself is reported later through the browser's
// download events.
func (d *Driver) TriggerDownload(page browser.Page, item browser.Element) error {
	if err := item.Hover(); err != nil {
		return &stream_archiver.InteractionError{Stage: "hover item", Err: err}
	}
	more, err := item.Element(d.platform.Sel.MoreButton, d.waitTimeout)
	if err != nil {
		return &stream_archiver.InteractionError{Stage: "wait more button", Err: err}
	}
	if err = more.Hover(); err != nil {
		return &stream_archiver.InteractionError{Stage: "hover more button", Err: err}
	}
	// The menu renders in an overlay at document level, not inside the item
	menu, err := page.Element(d.platform.Sel.Menu, d.waitTimeout)
	if err != nil {
		return &stream_archiver.InteractionError{Stage: "wait menu", Err: err}
	}
	if _, err = menu.Element(d.platform.Sel.MenuItem, d.waitTimeout); err != nil {
		return &stream_archiver.InteractionError{Stage: "wait menu actions", Err: err}
	}
	actions, err := menu.Elements(d.platform.Sel.MenuItem)
	if err != nil {
		return &stream_archiver.InteractionError{Stage: "list menu actions", Err: err}
	}
	if len(actions) < d.actionIndex {
		return &stream_archiver.InteractionError{
			Stage: "locate download action",
			Err:   fmt.Errorf("menu has %d actions, want at least %d", len(actions), d.actionIndex),
		}
	}
	if err = actions[d.actionIndex-1].Click(); err != nil {
		return &stream_archiver.InteractionError{Stage: "click download action", Err: err}
	}
	d.log.Debugw("download action clicked", "action_index", d.actionIndex)
	return nil
}
