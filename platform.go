package stream_archiver

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/stream-archiver/generic"
)

var (
	ErrDuplicatePlatform = errors.New("duplicate platform name")
	ErrInvalidPlatform   = errors.New("invalid platform")
	ErrNoMatch           = errors.New("no platform matched the input")
	ErrUnknownPlatform   = errors.New("unknown platform")
)

var (
	PriorityHighest int16 = math.MinInt16
	PriorityDefault int16 = 0
	PriorityLowest  int16 = math.MaxInt16
)

// Selectors is the CSS selector set a Platform uses against its rendered
// pages. Selectors go stale whenever the platform ships a redesign; keeping
// them as data (rather than burying them in component code) is what makes
// that survivable.
type Selectors struct {
	// LoggedIn is probed (without waiting) to decide the two-state login gate.
	LoggedIn string
	// Grid is the container whose presence confirms the videos page rendered.
	Grid string
	// Item matches one grid card per livestream.
	Item string
	// Anchor, Caption, Duration and PrivateBadge are resolved within one item.
	Anchor       string
	Caption      string
	Duration     string
	PrivateBadge string
	// MoreButton appears on item hover; Menu appears on MoreButton hover;
	// MenuItem matches the menu's action entries.
	MoreButton string
	Menu       string
	MenuItem   string
}

// A Platform describes one site the archiver knows how to drive: where the
// video library lives, how to recognize a logged-in session, and how to pick
// apart a grid card.
type Platform struct {
	Name string
	// BaseURL is the scheme+host used to resolve relative hrefs.
	BaseURL string
	// VideosPath is the path template for a user's video library, with %s for
	// the user identifier.
	VideosPath string
	LoginURL   string
	// VideoID extracts the stable identifier from an item URL; the first
	// capture group is the uuid. Identifiers must be opaque fixed-format
	// tokens (the ledger dedups on exact field equality).
	VideoID *regexp.Regexp
	// DateSeparator splits the caption text; the trailing segment is the raw
	// date display.
	DateSeparator string
	// DateLayouts are tried in order when normalizing the raw date text.
	DateLayouts []string
	Sel         Selectors
	// Priority of URL matching, lower (including negative) means matching earlier.
	Priority int16
}

func (p Platform) WithPriority(priority int16) Platform {
	p.Priority = priority
	return p
}

// VideosURL returns the absolute URL of the user's video library.
func (p *Platform) VideosURL(user string) string {
	return p.BaseURL + fmt.Sprintf(p.VideosPath, user)
}

// MatchURL extracts the user identifier if the input is a profile/videos URL
// belonging to this platform, e.g. "https://host/someuser/videos".
func (p *Platform) MatchURL(s string) (string, error) {
	parsed, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(parsed.Hostname(), base.Hostname()) {
		return "", fmt.Errorf("unrecognised hostname %q", parsed.Hostname())
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "", fmt.Errorf("no user segment in path %q", parsed.Path)
	}
	return segments[0], nil
}

func (p *Platform) validate() error {
	if p.Name == "" || p.BaseURL == "" || p.VideoID == nil {
		return ErrInvalidPlatform
	}
	return nil
}

// A PlatformRegistry is a collection of Platform instances, looked up by name
// or matched against a profile URL.
type PlatformRegistry struct {
	platforms   []*Platform
	platformMap map[string]*Platform
}

// Add registers a Platform. Name, BaseURL and VideoID must be set, and Name
// must be unique within the registry.
func (r *PlatformRegistry) Add(p Platform) error {
	if r.platformMap == nil {
		r.platformMap = make(map[string]*Platform)
	}
	if err := p.validate(); err != nil {
		return err
	}
	if _, ok := r.platformMap[p.Name]; ok {
		return ErrDuplicatePlatform
	}
	r.platformMap[p.Name] = &p
	r.platforms = append(r.platforms, r.platformMap[p.Name])
	r.sortByPriority()
	return nil
}

// Get returns the named Platform, or ErrUnknownPlatform.
func (r *PlatformRegistry) Get(name string) (*Platform, error) {
	if p, ok := r.platformMap[name]; ok {
		return p, nil
	} else {
		return nil, ErrUnknownPlatform
	}
}

// List returns the names of registered platforms in priority order.
func (r *PlatformRegistry) List() []string {
	names := make([]string, 0, len(r.platforms))
	for _, p := range r.platforms {
		names = append(names, p.Name)
	}
	return names
}

// Match tries each Platform in priority order against a profile URL,
// returning the platform and the extracted user identifier. On failure the
// returned error matches ErrNoMatch and carries each per-platform failure.
func (r *PlatformRegistry) Match(s string) (*Platform, string, error) {
	var result error = ErrNoMatch
	for _, p := range r.platforms {
		if user, err := p.MatchURL(s); err == nil && user != "" {
			return p, user, nil
		} else {
			result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[%v]", p.Name)))
		}
	}
	return nil, "", result
}

// MustAdd wraps Add but panics if there is an error.
func (r *PlatformRegistry) MustAdd(p Platform) {
	generic.Unwrap_(r.Add(p))
}

// SetPriority adjusts the priority of a named Platform.
func (r *PlatformRegistry) SetPriority(name string, priority int16) error {
	if p, ok := r.platformMap[name]; ok {
		p.Priority = priority
		r.sortByPriority()
		return nil
	} else {
		return ErrUnknownPlatform
	}
}

func (r *PlatformRegistry) sortByPriority() {
	sort.Slice(r.platforms, func(i, j int) bool {
		return r.platforms[i].Priority < r.platforms[j].Priority
	})
}

var DefaultPlatformRegistry PlatformRegistry
