// Package cookies provides a file-backed http.CookieJar that plays the role
// of a browser cookie store between CLI invocations.
package cookies

import (
	"fmt"
	nethttp "net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/ini.v1"

	"github.com/firstbutton/docucal/internal/constants"
)

// entry is one stored cookie. Cookies are host-only: the Domain attribute
// of incoming cookies is ignored and the request host is used instead.
type entry struct {
	Host    string
	Path    string
	Name    string
	Value   string
	Expires time.Time // zero means no expiry
}

func (e entry) key() string {
	return e.Host + e.Path + "|" + e.Name
}

func (e entry) expired(now time.Time) bool {
	return !e.Expires.IsZero() && !e.Expires.After(now)
}

// Jar is a persistent cookie jar. Every mutation is written through to disk.
// Safe for concurrent use.
type Jar struct {
	path    string
	entries map[string]entry
	now     func() time.Time
	mu      sync.Mutex
}

// Open loads the jar stored at path. A missing file yields an empty jar.
func Open(path string) (*Jar, error) {
	j := &Jar{
		path:    path,
		entries: make(map[string]entry),
		now:     time.Now,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return j, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load cookie store: %w", err)
	}

	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		e := entry{
			Host:  sec.Key("host").String(),
			Path:  sec.Key("path").MustString("/"),
			Name:  sec.Key("name").String(),
			Value: sec.Key("value").String(),
		}
		if raw := sec.Key("expires").String(); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				e.Expires = t
			}
		}
		if e.Host == "" || e.Name == "" {
			continue
		}
		j.entries[e.key()] = e
	}

	return j, nil
}

// Path returns the backing file.
func (j *Jar) Path() string {
	return j.path
}

// SetCookies implements http.CookieJar. Persist errors are logged because
// the interface has no error return.
func (j *Jar) SetCookies(u *url.URL, cookies []*nethttp.Cookie) {
	for _, c := range cookies {
		if err := j.Store(u, c); err != nil {
			log.Warn().Err(err).Str("cookie", c.Name).Msg("Failed to persist cookie")
		}
	}
}

// Cookies implements http.CookieJar: live cookies whose host and path match u.
func (j *Jar) Cookies(u *url.URL) []*nethttp.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	host := canonicalHost(u)
	reqPath := u.EscapedPath()
	if reqPath == "" {
		reqPath = "/"
	}

	var matched []entry
	for _, e := range j.entries {
		if e.Host != host || e.expired(now) || !pathMatch(reqPath, e.Path) {
			continue
		}
		matched = append(matched, e)
	}

	// Longer paths first, as browsers do
	sort.Slice(matched, func(a, b int) bool {
		if len(matched[a].Path) != len(matched[b].Path) {
			return len(matched[a].Path) > len(matched[b].Path)
		}
		return matched[a].Name < matched[b].Name
	})

	out := make([]*nethttp.Cookie, 0, len(matched))
	for _, e := range matched {
		out = append(out, &nethttp.Cookie{Name: e.Name, Value: e.Value})
	}
	return out
}

// Get returns the value of the named cookie visible to u.
func (j *Jar) Get(u *url.URL, name string) (string, bool) {
	for _, c := range j.Cookies(u) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Store records c for u and writes the jar to disk. A cookie that is already
// expired (past Expires or negative MaxAge) deletes any stored cookie with the
// same host, path and name.
func (j *Jar) Store(u *url.URL, c *nethttp.Cookie) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	e := entry{
		Host:  canonicalHost(u),
		Path:  c.Path,
		Name:  c.Name,
		Value: c.Value,
	}
	if e.Path == "" || e.Path[0] != '/' {
		e.Path = "/"
	}

	switch {
	case c.MaxAge < 0:
		e.Expires = time.Unix(1, 0)
	case c.MaxAge > 0:
		e.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	case !c.Expires.IsZero():
		e.Expires = c.Expires
	}

	if e.expired(now) {
		delete(j.entries, e.key())
	} else {
		j.entries[e.key()] = e
	}

	return j.saveLocked()
}

// Clear drops every cookie and rewrites the file.
func (j *Jar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = make(map[string]entry)
	return j.saveLocked()
}

func (j *Jar) saveLocked() error {
	if j.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(j.path), constants.ConfigDirPerm); err != nil {
		return fmt.Errorf("failed to create cookie store directory: %w", err)
	}

	f := ini.Empty()
	now := j.now()
	keys := make([]string, 0, len(j.entries))
	for k, e := range j.entries {
		if e.expired(now) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Section names are positional; identity comes from host, path and name.
	for i, k := range keys {
		e := j.entries[k]
		sec, err := f.NewSection(fmt.Sprintf("cookie %d", i+1))
		if err != nil {
			return fmt.Errorf("failed to write cookie %s: %w", e.Name, err)
		}
		sec.Key("host").SetValue(e.Host)
		sec.Key("path").SetValue(e.Path)
		sec.Key("name").SetValue(e.Name)
		sec.Key("value").SetValue(e.Value)
		if !e.Expires.IsZero() {
			sec.Key("expires").SetValue(e.Expires.UTC().Format(time.RFC3339))
		}
	}

	tmpPath := j.path + ".tmp"
	if err := f.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write cookie store: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, constants.ConfigFilePerm); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set cookie store permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, j.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save cookie store: %w", err)
	}
	return nil
}

func canonicalHost(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}

// pathMatch implements RFC 6265 section 5.1.4 path matching.
func pathMatch(reqPath, cookiePath string) bool {
	if reqPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(reqPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || reqPath[len(cookiePath)] == '/'
}
