package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// maxResponseBody caps how much of a response body is buffered.
const maxResponseBody = 8 << 20

// Transport is the terminal pipeline stage: one HTTP round trip per call.
type Transport struct {
	base   *url.URL
	client *http.Client
}

// NewTransport returns a Transport sending to base. A nil client gets a
// default client without a cookie jar; cookies are the Credentials stage's job.
func NewTransport(base *url.URL, client *http.Client) *Transport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Transport{base: base, client: client}
}

func (t *Transport) Do(ctx context.Context, req *Request) (*Response, error) {
	u := resolveURL(t.base, req.Path, req.Query)

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, transportError(fmt.Errorf("build request: %w", err))
	}
	for k, v := range req.Header {
		httpReq.Header[k] = append([]string(nil), v...)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, transportError(fmt.Errorf("read response: %w", err))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       data,
	}, nil
}
