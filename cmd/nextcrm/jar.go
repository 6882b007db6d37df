package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const jarFile = "cookies.json"

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// fileJar is a cookiejar that remembers what the backend set so the session
// survives between invocations. It only tracks one backend origin.
type fileJar struct {
	mu    sync.Mutex
	inner *cookiejar.Jar
	path  string
	base  *url.URL
	set   map[string]storedCookie
	now   func() time.Time
}

func openJar(dir, baseURL string) (*fileJar, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	j := &fileJar{
		inner: inner,
		path:  filepath.Join(dir, jarFile),
		base:  base,
		set:   map[string]storedCookie{},
		now:   time.Now,
	}

	raw, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	var stored []storedCookie
	if err := json.Unmarshal(raw, &stored); err != nil {
		// A corrupt file only costs a login.
		return j, nil
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, sc := range stored {
		if !sc.Expires.IsZero() && !sc.Expires.After(j.now()) {
			continue
		}
		j.set[sc.Name+"|"+sc.Path] = sc
		cookies = append(cookies, &http.Cookie{
			Name:     sc.Name,
			Value:    sc.Value,
			Path:     sc.Path,
			Expires:  sc.Expires,
			Secure:   sc.Secure,
			HttpOnly: sc.HttpOnly,
		})
	}
	inner.SetCookies(base, cookies)
	return j, nil
}

func (j *fileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()
	for _, ck := range cookies {
		path := ck.Path
		if path == "" {
			path = "/"
		}
		key := ck.Name + "|" + path
		expires := ck.Expires
		switch {
		case ck.MaxAge < 0:
			delete(j.set, key)
			continue
		case ck.MaxAge > 0:
			expires = j.now().Add(time.Duration(ck.MaxAge) * time.Second)
		}
		if !expires.IsZero() && !expires.After(j.now()) {
			delete(j.set, key)
			continue
		}
		j.set[key] = storedCookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Path:     path,
			Expires:  expires,
			Secure:   ck.Secure,
			HttpOnly: ck.HttpOnly,
		}
	}
}

func (j *fileJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// Save writes the live cookies with owner-only permissions.
func (j *fileJar) Save() error {
	j.mu.Lock()
	stored := make([]storedCookie, 0, len(j.set))
	for _, sc := range j.set {
		stored = append(stored, sc)
	}
	j.mu.Unlock()

	raw, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write cookies: %w", err)
	}
	return os.Rename(tmp, j.path)
}
