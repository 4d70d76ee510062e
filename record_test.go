package stream_archiver

import (
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestVideoRecordValidate(t *testing.T) {
	assert := assert_.New(t)
	record := VideoRecord{
		URL:  "https://example.com/someuser/videos/1234567890/",
		UUID: "1234567890",
	}
	assert.NoError(record.Validate())

	missingUUID := VideoRecord{URL: "https://example.com/someuser/videos/1234567890/"}
	assert.ErrorIs(missingUUID.Validate(), ErrMissingUUID)

	missingURL := VideoRecord{UUID: "1234567890"}
	assert.ErrorIs(missingURL.Validate(), ErrMissingURL)
}

func TestVideoRecordResolved(t *testing.T) {
	assert := assert_.New(t)
	record := VideoRecord{UUID: "1234567890"}
	assert.False(record.Resolved())
	record.Filename = "2023-01-05 - My Stream.mp4"
	assert.True(record.Resolved())
	record.Filename = NotDownloadable
	assert.True(record.Resolved())
}

func TestVideoRecordString(t *testing.T) {
	assert := assert_.New(t)
	record := VideoRecord{
		UUID:  "1234567890",
		Title: "My Stream",
		Date:  "2023-01-05",
	}
	assert.Equal(`VideoRecord{UUID:"1234567890", Date:"2023-01-05", Title:"My Stream"}`, record.String())
}
