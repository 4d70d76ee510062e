package stream_archiver

import (
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestNamingConfigTargetName(t *testing.T) {
	assert := assert_.New(t)
	naming := NewNamingConfig("/tmp/videos")
	record := &VideoRecord{
		UUID:  "1234567890",
		Title: "My: Stream/Test",
		Date:  "2023-01-05",
	}
	name, err := naming.GetTargetName(record)
	assert.NoError(err)
	assert.Equal("2023-01-05 - My Stream Test.mp4", name)
}

func TestNamingConfigEmptyTitle(t *testing.T) {
	assert := assert_.New(t)
	naming := NewNamingConfig(".")
	// A title of nothing but reserved characters sanitizes to the empty
	// string, so the name falls back to the UUID instead.
	record := &VideoRecord{
		UUID:  "1234567890",
		Title: "???",
		Date:  "2023-01-05",
	}
	name, err := naming.GetTargetName(record)
	assert.NoError(err)
	assert.Equal("2023-01-05 - 1234567890.mp4", name)
}

func TestNamingConfigTargetPath(t *testing.T) {
	assert := assert_.New(t)
	naming := NewNamingConfig("/tmp/videos")
	record := &VideoRecord{
		UUID:  "1234567890",
		Title: "My Stream",
		Date:  "2023-01-05",
	}
	path, err := naming.GetTargetPath(record)
	assert.NoError(err)
	assert.Equal(filepath.Join("/tmp/videos", "2023-01-05 - My Stream.mp4"), path)
	assert.Equal("/tmp/videos", naming.TargetDir())
}
