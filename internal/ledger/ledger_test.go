package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	assert_ "github.com/stretchr/testify/assert"

	"github.com/alanbriolat/stream-archiver"
)

func TestInit(t *testing.T) {
	assert := assert_.New(t)
	l := New(t.TempDir())

	assert.NoError(l.Init())
	data, err := os.ReadFile(l.Path())
	assert.NoError(err)
	assert.Equal("URL,UUID,Title,Date,Duration,Filename\n", string(data))

	// Init again must be a no-op
	assert.NoError(l.Init())
	again, err := os.ReadFile(l.Path())
	assert.NoError(err)
	assert.Equal(data, again)
}

func TestInitNeverTruncates(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	existing := "URL,UUID,Title,Date,Duration,Filename\nu,123,t,2023-01-05,1:00,f.mp4\n"
	assert.NoError(os.WriteFile(filepath.Join(dir, FileName), []byte(existing), 0o644))

	l := New(dir)
	assert.NoError(l.Init())
	data, err := os.ReadFile(l.Path())
	assert.NoError(err)
	assert.Equal(existing, string(data))
	assert.True(l.Contains("123"))
}

func TestAppendAndContains(t *testing.T) {
	assert := assert_.New(t)
	l := New(t.TempDir())
	assert.NoError(l.Init())

	record := &stream_archiver.VideoRecord{
		URL:      "https://example.com/user/videos/1234567890",
		UUID:     "1234567890",
		Title:    "Morning stream",
		Date:     "2023-01-05",
		Duration: "1:23:45",
		Filename: "2023-01-05 - Morning stream.mp4",
	}
	assert.False(l.Contains(record.UUID))
	assert.NoError(l.Append(record))
	assert.True(l.Contains(record.UUID))
	assert.False(l.Contains("9999999999"))

	data, err := os.ReadFile(l.Path())
	assert.NoError(err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	assert.Len(lines, 2)
	assert.Equal("https://example.com/user/videos/1234567890,1234567890,Morning stream,2023-01-05,1:23:45,2023-01-05 - Morning stream.mp4", lines[1])
}

func TestAppendQuotesSpecialCharacters(t *testing.T) {
	assert := assert_.New(t)
	l := New(t.TempDir())
	assert.NoError(l.Init())

	record := &stream_archiver.VideoRecord{
		URL:      "https://example.com/user/videos/42",
		UUID:     "42",
		Title:    `My "live", part 2`,
		Date:     "2023-01-05",
		Duration: "0:10",
		Filename: stream_archiver.NotDownloadable,
	}
	assert.NoError(l.Append(record))
	// The row must still parse back to exactly one record
	assert.True(l.Contains("42"))

	data, err := os.ReadFile(l.Path())
	assert.NoError(err)
	assert.Contains(string(data), `"My ""live"", part 2"`)
}

func TestContainsMissingFile(t *testing.T) {
	assert := assert_.New(t)
	l := New(t.TempDir())
	assert.False(l.Contains("123"))
}

func TestContainsFailsOpen(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	// A directory where the ledger file should be makes every read fail; the
	// check must report "not present" rather than wedge the run.
	assert.NoError(os.Mkdir(filepath.Join(dir, FileName), 0o755))
	l := New(dir)
	assert.False(l.Contains("123"))
}
