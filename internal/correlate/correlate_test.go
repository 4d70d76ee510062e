package correlate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"

	"github.com/alanbriolat/stream-archiver"
	"github.com/alanbriolat/stream-archiver/async"
	"github.com/alanbriolat/stream-archiver/generic"
	"github.com/alanbriolat/stream-archiver/internal/browser"
	"github.com/alanbriolat/stream-archiver/internal/pubsub"
)

var testConfig = Config{
	StartTimeout:    2 * time.Second,
	ProgressTimeout: 2 * time.Second,
}

func newTestCorrelator(t *testing.T, cfg Config) (*Correlator, pubsub.Publisher[browser.DownloadEvent], string) {
	dir := t.TempDir()
	pub := pubsub.NewPublisher[browser.DownloadEvent]()
	sub, err := pub.Subscribe()
	if err != nil {
		t.Fatal(err)
	}
	c := New(dir, stream_archiver.NewNamingConfig(dir), sub, cfg)
	t.Cleanup(func() {
		c.Close()
		pub.Close()
	})
	return c, pub, dir
}

func newTestRecord() *stream_archiver.VideoRecord {
	return &stream_archiver.VideoRecord{
		URL:      "https://streams.example.com/someuser/videos/1234567890/",
		UUID:     "1234567890",
		Title:    "My: Stream/Test",
		Date:     "2023-01-05",
		Duration: "1:23:45",
	}
}

func writeProvisional(t *testing.T, dir, guid string) {
	if err := os.WriteFile(filepath.Join(dir, guid), []byte("video bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func awaitResult(t *testing.T, c <-chan generic.Result[string]) generic.Result[string] {
	select {
	case r := <-c:
		return r
	case <-time.After(10 * time.Second):
		t.Fatal("Await did not return")
		return generic.Result[string]{}
	}
}

func TestAwaitRenamesCompletedTransfer(t *testing.T) {
	assert := assert_.New(t)
	c, pub, dir := newTestCorrelator(t, testConfig)
	writeProvisional(t, dir, "guid-1")

	pending, err := c.Arm(newTestRecord())
	assert.NoError(err)
	resultC := async.RunResult(func() (string, error) {
		return pending.Await(context.Background(), nil)
	})

	pub.Send(browser.DownloadStarted{GUID: "guid-1", SuggestedFilename: "video.mp4"})
	pub.Send(browser.DownloadUpdated{GUID: "guid-1", State: browser.DownloadCompleted})

	r := awaitResult(t, resultC)
	assert.True(r.IsOk())
	assert.Equal("2023-01-05 - My Stream Test.mp4", r.Value)

	data, err := os.ReadFile(filepath.Join(dir, r.Value))
	assert.NoError(err)
	assert.Equal("video bytes", string(data))
	_, err = os.Stat(filepath.Join(dir, "guid-1"))
	assert.True(errors.Is(err, os.ErrNotExist))
}

func TestAwaitRelaysProgress(t *testing.T) {
	assert := assert_.New(t)
	c, pub, dir := newTestCorrelator(t, testConfig)
	writeProvisional(t, dir, "guid-1")

	pending, err := c.Arm(newTestRecord())
	assert.NoError(err)
	progressC := make(chan int64, 16)
	resultC := async.RunResult(func() (string, error) {
		return pending.Await(context.Background(), func(received, total int64) {
			progressC <- received
		})
	})

	pub.Send(browser.DownloadStarted{GUID: "guid-1"})
	pub.Send(browser.DownloadUpdated{GUID: "guid-1", State: browser.DownloadInProgress, ReceivedBytes: 25, TotalBytes: 100})
	select {
	case received := <-progressC:
		assert.Equal(int64(25), received)
	case <-time.After(5 * time.Second):
		assert.Fail("no progress relayed")
	}

	pub.Send(browser.DownloadUpdated{GUID: "guid-1", State: browser.DownloadCompleted})
	r := awaitResult(t, resultC)
	assert.True(r.IsOk())
}

func TestAwaitStartTimeout(t *testing.T) {
	assert := assert_.New(t)
	c, _, _ := newTestCorrelator(t, Config{StartTimeout: 50 * time.Millisecond, ProgressTimeout: time.Second})

	pending, err := c.Arm(newTestRecord())
	assert.NoError(err)
	_, err = pending.Await(context.Background(), nil)
	assert.True(stream_archiver.IsCorrelationTimeout(err))
	var cerr *stream_archiver.CorrelationTimeout
	assert.True(errors.As(err, &cerr))
	assert.Equal("start", cerr.Phase)
	assert.Equal("1234567890", cerr.UUID)
}

func TestAwaitProgressTimeout(t *testing.T) {
	assert := assert_.New(t)
	c, pub, _ := newTestCorrelator(t, Config{StartTimeout: time.Second, ProgressTimeout: 50 * time.Millisecond})

	pending, err := c.Arm(newTestRecord())
	assert.NoError(err)
	resultC := async.RunResult(func() (string, error) {
		return pending.Await(context.Background(), nil)
	})
	pub.Send(browser.DownloadStarted{GUID: "guid-1"})

	r := awaitResult(t, resultC)
	assert.True(r.IsErr())
	var cerr *stream_archiver.CorrelationTimeout
	assert.True(errors.As(r.Error, &cerr))
	assert.Equal("progress", cerr.Phase)
}

func TestAwaitProgressResetsTimeout(t *testing.T) {
	assert := assert_.New(t)
	c, pub, dir := newTestCorrelator(t, Config{StartTimeout: time.Second, ProgressTimeout: 200 * time.Millisecond})
	writeProvisional(t, dir, "guid-1")

	pending, err := c.Arm(newTestRecord())
	assert.NoError(err)
	resultC := async.RunResult(func() (string, error) {
		return pending.Await(context.Background(), nil)
	})

	pub.Send(browser.DownloadStarted{GUID: "guid-1"})
	// Keep the transfer alive well past a single ProgressTimeout window
	for i := 0; i < 6; i++ {
		time.Sleep(50 * time.Millisecond)
		pub.Send(browser.DownloadUpdated{GUID: "guid-1", State: browser.DownloadInProgress, ReceivedBytes: int64(i)})
	}
	pub.Send(browser.DownloadUpdated{GUID: "guid-1", State: browser.DownloadCompleted})

	r := awaitResult(t, resultC)
	assert.True(r.IsOk())
}

func TestExclusivity(t *testing.T) {
	assert := assert_.New(t)
	c, pub, dir := newTestCorrelator(t, testConfig)
	writeProvisional(t, dir, "guid-1")
	writeProvisional(t, dir, "guid-2")

	pending, err := c.Arm(newTestRecord())
	assert.NoError(err)
	resultC := async.RunResult(func() (string, error) {
		return pending.Await(context.Background(), nil)
	})

	pub.Send(browser.DownloadStarted{GUID: "guid-1"})
	// A second transfer starting while armed belongs to someone else
	pub.Send(browser.DownloadStarted{GUID: "guid-2"})
	pub.Send(browser.DownloadUpdated{GUID: "guid-2", State: browser.DownloadCompleted})
	pub.Send(browser.DownloadUpdated{GUID: "guid-1", State: browser.DownloadCompleted})

	r := awaitResult(t, resultC)
	assert.True(r.IsOk())
	// Only the captured transfer was renamed
	_, err = os.Stat(filepath.Join(dir, "guid-2"))
	assert.NoError(err)
	_, err = os.Stat(filepath.Join(dir, "guid-1"))
	assert.True(errors.Is(err, os.ErrNotExist))
}

func TestEventsIgnoredWhileUnarmed(t *testing.T) {
	assert := assert_.New(t)
	c, pub, dir := newTestCorrelator(t, testConfig)
	writeProvisional(t, dir, "guid-1")

	// Nothing armed yet: these must be drained and dropped
	pub.Send(browser.DownloadStarted{GUID: "guid-0"})
	pub.Send(browser.DownloadUpdated{GUID: "guid-0", State: browser.DownloadCompleted})
	time.Sleep(50 * time.Millisecond)

	pending, err := c.Arm(newTestRecord())
	assert.NoError(err)
	resultC := async.RunResult(func() (string, error) {
		return pending.Await(context.Background(), nil)
	})
	pub.Send(browser.DownloadStarted{GUID: "guid-1"})
	pub.Send(browser.DownloadUpdated{GUID: "guid-1", State: browser.DownloadCompleted})

	r := awaitResult(t, resultC)
	assert.True(r.IsOk())
}

func TestArmExclusive(t *testing.T) {
	assert := assert_.New(t)
	c, _, _ := newTestCorrelator(t, testConfig)

	pending, err := c.Arm(newTestRecord())
	assert.NoError(err)
	_, err = c.Arm(newTestRecord())
	assert.ErrorIs(err, ErrAlreadyArmed)

	pending.Cancel()
	pending2, err := c.Arm(newTestRecord())
	assert.NoError(err)
	assert.NotNil(pending2)
}

func TestAwaitCanceledTransfer(t *testing.T) {
	assert := assert_.New(t)
	c, pub, _ := newTestCorrelator(t, testConfig)

	pending, err := c.Arm(newTestRecord())
	assert.NoError(err)
	resultC := async.RunResult(func() (string, error) {
		return pending.Await(context.Background(), nil)
	})
	pub.Send(browser.DownloadStarted{GUID: "guid-1"})
	pub.Send(browser.DownloadUpdated{GUID: "guid-1", State: browser.DownloadCanceled})

	r := awaitResult(t, resultC)
	assert.True(r.IsErr())
	assert.ErrorIs(r.Error, ErrDownloadCanceled)
}

func TestAwaitContextCancel(t *testing.T) {
	assert := assert_.New(t)
	c, _, _ := newTestCorrelator(t, testConfig)

	pending, err := c.Arm(newTestRecord())
	assert.NoError(err)
	ctx, cancel := context.WithCancel(context.Background())
	resultC := async.RunResult(func() (string, error) {
		return pending.Await(ctx, nil)
	})
	cancel()

	r := awaitResult(t, resultC)
	assert.True(r.IsErr())
	assert.ErrorIs(r.Error, context.Canceled)
}

func TestFinalizeCollision(t *testing.T) {
	assert := assert_.New(t)
	c, pub, dir := newTestCorrelator(t, testConfig)
	writeProvisional(t, dir, "guid-1")
	// Another item already produced the same canonical name
	existing := filepath.Join(dir, "2023-01-05 - My Stream Test.mp4")
	assert.NoError(os.WriteFile(existing, []byte("older video"), 0o644))

	pending, err := c.Arm(newTestRecord())
	assert.NoError(err)
	resultC := async.RunResult(func() (string, error) {
		return pending.Await(context.Background(), nil)
	})
	pub.Send(browser.DownloadStarted{GUID: "guid-1"})
	pub.Send(browser.DownloadUpdated{GUID: "guid-1", State: browser.DownloadCompleted})

	r := awaitResult(t, resultC)
	assert.True(r.IsOk())
	assert.Equal("2023-01-05 - My Stream Test [1234567890].mp4", r.Value)

	// The colliding file is untouched
	data, err := os.ReadFile(existing)
	assert.NoError(err)
	assert.Equal("older video", string(data))
	data, err = os.ReadFile(filepath.Join(dir, r.Value))
	assert.NoError(err)
	assert.Equal("video bytes", string(data))
}

func TestFinalizeRenameFailure(t *testing.T) {
	assert := assert_.New(t)
	c, pub, _ := newTestCorrelator(t, testConfig)
	// No provisional file was ever written, so the rename must fail

	pending, err := c.Arm(newTestRecord())
	assert.NoError(err)
	resultC := async.RunResult(func() (string, error) {
		return pending.Await(context.Background(), nil)
	})
	pub.Send(browser.DownloadStarted{GUID: "guid-1"})
	pub.Send(browser.DownloadUpdated{GUID: "guid-1", State: browser.DownloadCompleted})

	r := awaitResult(t, resultC)
	assert.True(r.IsErr())
	assert.True(stream_archiver.IsPersistenceError(r.Error))
}
