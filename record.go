package stream_archiver

import (
	"errors"
	"fmt"
)

// NotDownloadable is the sentinel Filename for items that can never be
// downloaded through the UI (e.g. marked private by the platform).
const NotDownloadable = "<not downloadable>"

var (
	ErrMissingUUID = errors.New("record has no uuid")
	ErrMissingURL  = errors.New("record has no url")
)

// A VideoRecord describes one livestream item discovered in the content grid.
// Filename stays empty until the item's outcome is known: either the final
// on-disk name after a successful download, or NotDownloadable.
type VideoRecord struct {
	URL      string
	UUID     string
	Title    string
	Date     string // normalized YYYY-MM-DD
	Duration string // display text, e.g. "1:23:45"
	Private  bool
	Filename string
}

func (r *VideoRecord) String() string {
	return fmt.Sprintf("VideoRecord{UUID:%q, Date:%q, Title:%q}", r.UUID, r.Date, r.Title)
}

// Validate checks the fields every downstream consumer relies on. The UUID is
// the sole dedup/resume key, so a record without one must never reach the
// ledger or the correlator.
func (r *VideoRecord) Validate() error {
	if r.UUID == "" {
		return ErrMissingUUID
	}
	if r.URL == "" {
		return ErrMissingURL
	}
	return nil
}

// Resolved returns true once the item's outcome is recorded, i.e. the record
// is eligible for a ledger append.
func (r *VideoRecord) Resolved() bool {
	return r.Filename != ""
}
