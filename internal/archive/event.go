package archive

import (
	"github.com/alanbriolat/stream-archiver"
)

type Event interface {
	// The VideoRecord this event relates to (nil if not an item-specific event).
	Item() *stream_archiver.VideoRecord
}

type itemEvent struct {
	record *stream_archiver.VideoRecord
}

func (e itemEvent) Item() *stream_archiver.VideoRecord {
	return e.record
}

// LoginRequired means the run is paused waiting for a human to complete the
// login in the browser window.
type LoginRequired struct {
	itemEvent
}

// GridExpanded means infinite scroll has reached its fixed point and the item
// loop is about to begin.
type GridExpanded struct {
	itemEvent
	ItemCount int
}

type ItemStarted struct {
	itemEvent
}

// ItemSkipped means the item's UUID was already present in the ledger.
type ItemSkipped struct {
	itemEvent
}

// ItemPrivate means the item was classified as not downloadable and recorded
// as such.
type ItemPrivate struct {
	itemEvent
}

type ItemProgress struct {
	itemEvent
	ReceivedBytes int64
	TotalBytes    int64
}

type ItemUpdated struct {
	itemEvent
	OldState stream_archiver.VideoRecord
	NewState stream_archiver.VideoRecord
}

type ItemCompleted struct {
	itemEvent
	Filename string
}

type ItemFailed struct {
	itemEvent
	Err error
}
