package browser

// DownloadState mirrors the lifecycle states the browser reports for one
// transfer.
type DownloadState int

const (
	DownloadInProgress DownloadState = iota
	DownloadCompleted
	DownloadCanceled
)

func (s DownloadState) String() string {
	switch s {
	case DownloadInProgress:
		return "in progress"
	case DownloadCompleted:
		return "completed"
	case DownloadCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// A DownloadEvent is one browser notification about a transfer, identified by
// the browser-assigned GUID. The GUID doubles as the provisional filename in
// the download directory while the transfer is running.
type DownloadEvent interface {
	DownloadGUID() string
}

// DownloadStarted is emitted once per transfer, before any progress.
type DownloadStarted struct {
	GUID              string
	URL               string
	SuggestedFilename string
}

func (e DownloadStarted) DownloadGUID() string { return e.GUID }

// DownloadUpdated carries progress for a running transfer; State other than
// DownloadInProgress is terminal.
type DownloadUpdated struct {
	GUID          string
	State         DownloadState
	ReceivedBytes int64
	TotalBytes    int64
}

func (e DownloadUpdated) DownloadGUID() string { return e.GUID }
