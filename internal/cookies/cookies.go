package cookies

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileName is the session file's name inside the download directory.
const FileName = "_cookies.json"

// CookieJar is the slice of a browser session the store needs.
type CookieJar interface {
	Cookies() ([]*proto.NetworkCookie, error)
	SetCookies(cookies []*proto.NetworkCookieParam) error
}

// A Store persists browser cookies next to the downloads, so later runs can
// skip the interactive login. Both directions are best-effort: a missing or
// broken session file just means logging in again.
type Store struct {
	path string
	log  *zap.SugaredLogger
}

func NewStore(dir string) *Store {
	return &Store{
		path: filepath.Join(dir, FileName),
		log:  zap.S().Named("session"),
	}
}

func (s *Store) Path() string {
	return s.path
}

// Save exports the browser's cookies to disk, reporting success.
func (s *Store) Save(jar CookieJar) bool {
	exported, err := jar.Cookies()
	if err != nil {
		s.log.Warnf("cannot export cookies: %v", err)
		return false
	}
	data, err := json.MarshalIndent(exported, "", "  ")
	if err != nil {
		s.log.Warnf("cannot serialize cookies: %v", err)
		return false
	}
	if err = atomicWrite(s.path, data); err != nil {
		s.log.Warnf("cannot write %v: %v", s.path, err)
		return false
	}
	s.log.Debugf("saved %d cookies to %v", len(exported), s.path)
	return true
}

// Restore imports previously saved cookies, reporting whether any were
// loaded.
func (s *Store) Restore(jar CookieJar) bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warnf("cannot read %v: %v", s.path, err)
		}
		return false
	}
	var cookies []*proto.NetworkCookieParam
	if err = json.Unmarshal(data, &cookies); err != nil {
		s.log.Warnf("cannot parse %v: %v", s.path, err)
		return false
	}
	if len(cookies) == 0 {
		return false
	}
	if err = jar.SetCookies(cookies); err != nil {
		s.log.Warnf("cannot import cookies: %v", err)
		return false
	}
	s.log.Debugf("restored %d cookies from %v", len(cookies), s.path)
	return true
}

// atomicWrite replaces path in one rename, so a crash mid-write can never
// leave a truncated session file behind.
func atomicWrite(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
