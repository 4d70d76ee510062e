package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/alanbriolat/stream-archiver"
)

// An Extractor turns one grid item's HTML snapshot into a VideoRecord. It is
// pure: synchronous queries over the snapshot only, never page interaction.
type Extractor struct {
	platform *stream_archiver.Platform
}

func New(platform *stream_archiver.Platform) *Extractor {
	return &Extractor{platform: platform}
}

// Record extracts one grid item's metadata, leaving Filename unset. Every
// failure is an ExtractionError naming the field that could not be resolved.
// A missing title or duration is not a failure; a missing privacy badge means
// the item is public.
func (x *Extractor) Record(html string) (*stream_archiver.VideoRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &stream_archiver.ExtractionError{Field: "item", Err: err}
	}

	anchor := doc.Find(x.platform.Sel.Anchor).First()
	if anchor.Length() == 0 {
		return nil, &stream_archiver.ExtractionError{Field: "url", Err: errors.New("item has no video anchor")}
	}
	href, _ := anchor.Attr("href")
	itemURL := resolveURL(x.platform.BaseURL, href)

	m := x.platform.VideoID.FindStringSubmatch(itemURL)
	if len(m) < 2 {
		return nil, &stream_archiver.ExtractionError{Field: "uuid", Err: fmt.Errorf("no video id in %q", itemURL)}
	}

	record := &stream_archiver.VideoRecord{
		URL:   itemURL,
		UUID:  m[1],
		Title: strings.TrimSpace(anchor.AttrOr("aria-label", "")),
	}

	caption := doc.Find(x.platform.Sel.Caption).First().Text()
	rawDate, err := trailingSegment(caption, x.platform.DateSeparator)
	if err != nil {
		return nil, &stream_archiver.ExtractionError{Field: "date", Err: err}
	}
	date, err := normalizeDate(rawDate, x.platform.DateLayouts)
	if err != nil {
		return nil, &stream_archiver.ExtractionError{Field: "date", Err: err}
	}
	record.Date = date

	record.Duration = strings.TrimSpace(doc.Find(x.platform.Sel.Duration).First().Text())
	record.Private = doc.Find(x.platform.Sel.PrivateBadge).Length() > 0

	return record, nil
}

// trailingSegment returns the text after the last separator, e.g. the date
// part of "Some Channel · Jan 5, 2023".
func trailingSegment(s, sep string) (string, error) {
	if sep == "" || !strings.Contains(s, sep) {
		return "", fmt.Errorf("no %q separator in caption %q", sep, s)
	}
	parts := strings.Split(s, sep)
	return strings.TrimSpace(parts[len(parts)-1]), nil
}

// normalizeDate turns a displayed date like "Jan 5, 2023" into "2023-01-05",
// trying each layout in order. Whitespace is collapsed first because some
// platforms render dates with non-breaking space variants.
func normalizeDate(raw string, layouts []string) (string, error) {
	raw = strings.Join(strings.Fields(raw), " ")
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unparseable date %q", raw)
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}
