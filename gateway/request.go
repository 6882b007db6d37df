package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Request is one API call relative to the gateway's base URL. Requests are
// values: every stage that needs to change one works on a Clone, so a
// queued call replays exactly what its caller sent.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// NewRequest builds a request whose body is body encoded as JSON. A nil
// body sends no payload.
func NewRequest(method, path string, body any) (*Request, error) {
	req := &Request{
		Method: method,
		Path:   path,
		Header: make(http.Header),
	}
	if body == nil {
		return req, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
	}
	req.Body = data
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	out := &Request{
		Method: r.Method,
		Path:   r.Path,
		Header: r.Header.Clone(),
	}
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	if r.Query != nil {
		out.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			out.Query[k] = append([]string(nil), v...)
		}
	}
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return out
}

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if r == nil || v == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

func resolveURL(base *url.URL, path string, query url.Values) *url.URL {
	p := path
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	u := base.JoinPath(p)
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
		u.RawPath = ""
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u
}

func samePath(a, b string) bool {
	if i := strings.IndexByte(a, '?'); i >= 0 {
		a = a[:i]
	}
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

type retriedContextKey struct{}
type requestIDContextKey struct{}

// WithRetried marks ctx as belonging to a call that already went through
// one refresh cycle. The refresh coordinator never refreshes for such calls.
func WithRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedContextKey{}, true)
}

// IsRetried reports whether ctx was marked by WithRetried.
func IsRetried(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(retriedContextKey{}).(bool)
	return v
}

// WithRequestID attaches the X-Request-ID used for every attempt of a call.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
