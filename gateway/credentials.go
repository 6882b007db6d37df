package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/nextcrm/jwt"
)

// Session cookie names set by the backend.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// Credentials attaches session cookies and default headers to every attempt
// and records cookies the backend sets.
type Credentials struct {
	base        *url.URL
	jar         http.CookieJar
	headers     http.Header
	refreshPath string
	now         func() time.Time
}

func newCredentials(base *url.URL, jar http.CookieJar, headers http.Header, refreshPath string, now func() time.Time) *Credentials {
	if now == nil {
		now = time.Now
	}
	return &Credentials{
		base:        base,
		jar:         jar,
		headers:     headers,
		refreshPath: refreshPath,
		now:         now,
	}
}

func (c *Credentials) Middleware(next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
		out := req.Clone()
		for k, v := range c.headers {
			if out.Header.Get(k) == "" {
				out.Header[k] = append([]string(nil), v...)
			}
		}
		if id := RequestIDFromContext(ctx); id != "" {
			out.Header.Set("X-Request-ID", id)
		}

		u := resolveURL(c.base, out.Path, nil)
		out.Header.Del("Cookie")
		if header := cookieHeader(c.jar.Cookies(u)); header != "" {
			out.Header.Set("Cookie", header)
		}

		resp, err := next.Do(ctx, out)
		if resp != nil {
			if set := (&http.Response{Header: resp.Header}).Cookies(); len(set) > 0 {
				c.jar.SetCookies(u, set)
			}
		}
		return resp, err
	})
}

// Cookie returns the value the jar would send to the refresh endpoint,
// which sees every session cookie.
func (c *Credentials) Cookie(name string) (string, bool) {
	u := resolveURL(c.base, c.refreshPath, nil)
	for _, ck := range c.jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value, true
		}
	}
	return "", false
}

// HasRefreshCredential reports whether a refresh_token cookie is present
// and not known to be expired.
func (c *Credentials) HasRefreshCredential() bool {
	v, ok := c.Cookie(RefreshCookie)
	if !ok {
		return false
	}
	return jwt.Usable(v, c.now())
}

// Clear removes both session cookies from the jar.
func (c *Credentials) Clear() {
	paths := []string{"/"}
	if dir := refreshDir(c.refreshPath); dir != "/" {
		paths = append(paths, dir, c.refreshPath)
	}
	u := resolveURL(c.base, "/", nil)
	for _, p := range paths {
		c.jar.SetCookies(u, []*http.Cookie{
			{Name: AccessCookie, Path: p, MaxAge: -1},
			{Name: RefreshCookie, Path: p, MaxAge: -1},
		})
	}
}

func refreshDir(p string) string {
	p = strings.TrimSuffix(p, "/")
	if i := strings.LastIndexByte(p, '/'); i > 0 {
		return p[:i]
	}
	return "/"
}

func cookieHeader(cookies []*http.Cookie) string {
	if len(cookies) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}
