package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://crm.test", "http://", "::"} {
		_, err := New(Config{BaseURL: raw})
		assert.Error(t, err, raw)
	}
}

func TestGatewayOverHTTP(t *testing.T) {
	var refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(RefreshCookie); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"No refresh token","code":"NO_REFRESH_TOKEN"}`))
			return
		}
		refreshes.Add(1)
		http.SetCookie(w, &http.Cookie{Name: AccessCookie, Value: "fresh", Path: "/", HttpOnly: true})
		_, _ = w.Write([]byte(`{"message":"Token refreshed successfully"}`))
	})
	mux.HandleFunc("/api/nextcrm/contracts/", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(AccessCookie)
		if err != nil || c.Value != "fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Given token not valid for any token type"}`))
			return
		}
		assert.Equal(t, "nextcrm-test", r.UserAgent())
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"count":   1,
			"results": []map[string]any{{"id": 7, "contract_number": "CT-0007", "status": r.URL.Query().Get("status")}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g, err := New(Config{
		BaseURL:        srv.URL,
		HTTPClient:     srv.Client(),
		UserAgent:      "nextcrm-test",
		RequestTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	seedURL := srv.URL + "/"
	req, _ := http.NewRequest(http.MethodGet, seedURL, nil)
	g.Jar().SetCookies(req.URL, []*http.Cookie{{Name: RefreshCookie, Value: "opaque", Path: "/"}})

	var page struct {
		Count   int `json:"count"`
		Results []struct {
			ID     int    `json:"id"`
			Status string `json:"status"`
		} `json:"results"`
	}
	err = g.DoJSON(context.Background(), http.MethodGet, "/api/nextcrm/contracts/", map[string][]string{"status": {"active"}}, nil, &page)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "active", page.Results[0].Status)
	assert.Equal(t, int32(1), refreshes.Load())

	err = g.DoJSON(context.Background(), http.MethodGet, "/api/nextcrm/contracts/", nil, nil, &page)
	require.NoError(t, err)
	assert.Equal(t, int32(1), refreshes.Load(), "fresh cookie is reused")
}

func TestGatewayTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client := srv.Client()
	url := srv.URL
	srv.Close()

	g, err := New(Config{BaseURL: url, HTTPClient: client})
	require.NoError(t, err)

	_, err = g.Do(context.Background(), get("/api/nextcrm/contracts/"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestGatewayRequestTimeout(t *testing.T) {
	backend := HandlerFunc(func(ctx context.Context, _ *Request) (*Response, error) {
		<-ctx.Done()
		return nil, transportError(ctx.Err())
	})
	g, err := New(Config{BaseURL: "http://crm.test", Transport: backend, RequestTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = g.Do(context.Background(), get("/slow/"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
