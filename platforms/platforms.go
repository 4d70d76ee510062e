// Package platforms registers every built-in platform, for use as a blank
// import from main packages.
package platforms

import (
	_ "github.com/alanbriolat/stream-archiver/platform/facebook"
)
