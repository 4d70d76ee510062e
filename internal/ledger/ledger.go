package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/alanbriolat/stream-archiver"
)

// FileName is the ledger's name inside the download directory.
const FileName = "_videos.csv"

var header = []string{"URL", "UUID", "Title", "Date", "Duration", "Filename"}

// A Ledger is the append-only CSV of resolved items that makes runs
// idempotent and resumable. It is never rewritten, only appended to; one row
// per resolved item, keyed by the UUID column.
type Ledger struct {
	path string
	log  *zap.SugaredLogger
}

func New(dir string) *Ledger {
	return &Ledger{
		path: filepath.Join(dir, FileName),
		log:  zap.S().Named("ledger"),
	}
}

func (l *Ledger) Path() string {
	return l.path
}

// Init creates the ledger with its header row if it does not exist yet; an
// existing ledger is left untouched, whatever its contents.
func (l *Ledger) Init() error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil
	} else if err != nil {
		return &stream_archiver.PersistenceError{Op: "init", Path: l.path, Err: err}
	}
	defer f.Close()
	line, err := formatLine(header)
	if err == nil {
		_, err = f.Write(line)
	}
	if err != nil {
		return &stream_archiver.PersistenceError{Op: "init", Path: l.path, Err: err}
	}
	return nil
}

// Contains reports whether uuid already has a ledger row. Any read or parse
// failure counts as "not present": a duplicate download is recoverable, but a
// silently skipped item is not.
func (l *Ledger) Contains(uuid string) bool {
	f, err := os.Open(l.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.log.Warnf("cannot read ledger %v: %v", l.path, err)
		}
		return false
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	for {
		row, err := r.Read()
		if err == io.EOF {
			return false
		} else if err != nil {
			l.log.Warnf("cannot parse ledger %v: %v", l.path, err)
			return false
		}
		if len(row) > 1 && row[1] == uuid {
			return true
		}
	}
}

// Append writes record as one CSV row using a single write call, so that an
// interrupted run leaves either a complete row or no row, never a torn one.
func (l *Ledger) Append(record *stream_archiver.VideoRecord) error {
	line, err := formatLine([]string{
		record.URL,
		record.UUID,
		record.Title,
		record.Date,
		record.Duration,
		record.Filename,
	})
	if err != nil {
		return &stream_archiver.PersistenceError{Op: "append", Path: l.path, Err: err}
	}
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return &stream_archiver.PersistenceError{Op: "append", Path: l.path, Err: err}
	}
	defer f.Close()
	if _, err = f.Write(line); err != nil {
		return &stream_archiver.PersistenceError{Op: "append", Path: l.path, Err: err}
	}
	return nil
}

// formatLine serializes one row, including the trailing newline, into memory.
func formatLine(fields []string) ([]byte, error) {
	buf := bytes.Buffer{}
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
