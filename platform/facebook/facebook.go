// Package facebook drives the Facebook profile video library.
//
// Recognised profile URL formats:
//
//	http(s?)://www.facebook.com/{USER}/videos
//	http(s?)://www.facebook.com/{USER}
//
// Facebook ships obfuscated, frequently-changing class names, so every
// selector leans on ARIA roles, labels and data attributes instead. They
// still track the current profile-videos markup and go stale with redesigns.
package facebook

import (
	"regexp"

	"github.com/alanbriolat/stream-archiver"
)

// videoID matches both item URL shapes seen in the grid:
//
//	/{USER}/videos/{ID}/
//	/{USER}/videos/{SLUG}/{ID}/
var videoID = regexp.MustCompile(`/videos/(?:[^/]+/)?(\d+)`)

func New() stream_archiver.Platform {
	return stream_archiver.Platform{
		Name:          "facebook",
		BaseURL:       "https://www.facebook.com",
		VideosPath:    "/%s/videos",
		LoginURL:      "https://www.facebook.com/login",
		VideoID:       videoID,
		DateSeparator: "·",
		DateLayouts: []string{
			"January 2, 2006",
			"Jan 2, 2006",
		},
		Sel: stream_archiver.Selectors{
			LoggedIn:     `svg[aria-label="Your profile"]`,
			Grid:         `div[data-pagelet="ProfileAppSection_0"]`,
			Item:         `div[data-pagelet="ProfileAppSection_0"] div[role="gridcell"]`,
			Anchor:       `a[href*="/videos/"]`,
			Caption:      `span[dir="auto"]`,
			Duration:     `a[href*="/videos/"] span[aria-hidden="true"]`,
			PrivateBadge: `svg[aria-label="Private"]`,
			MoreButton:   `div[aria-label="More"][role="button"]`,
			Menu:         `div[role="menu"]`,
			MenuItem:     `div[role="menuitem"]`,
		},
	}
}

func init() {
	stream_archiver.DefaultPlatformRegistry.MustAdd(New())
}
