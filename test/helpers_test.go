//go:build integration
// +build integration

package test

import (
	"context"
	"net/http/httptest"
	"testing"

	nextcrm "github.com/MrEthical07/nextcrm"
	"github.com/MrEthical07/nextcrm/internal/fakebackend"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type integrationEnv struct {
	backend *fakebackend.Backend
	baseURL string
	redis   *redis.Client
	mr      *miniredis.Miniredis
}

func newIntegrationEnv(t *testing.T, cfg fakebackend.Config) *integrationEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	backend, err := fakebackend.New(cfg)
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	srv := httptest.NewServer(backend)

	t.Cleanup(func() {
		srv.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return &integrationEnv{backend: backend, baseURL: srv.URL, redis: rdb, mr: mr}
}

// client builds a Client whose snapshot lives in Redis under id.
func (e *integrationEnv) client(t *testing.T, id string, nav *countingNavigator) *nextcrm.Client {
	t.Helper()
	cfg := nextcrm.DefaultConfig(e.baseURL)
	cfg.Metrics.Enabled = true

	b := nextcrm.New().
		WithConfig(cfg).
		WithPersister(nextcrm.NewRedisPersister(e.redis, cfg.Session, id))
	if nav != nil {
		b.WithNavigator(nav)
	}
	c, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func mustLogin(t *testing.T, c *nextcrm.Client, username, password string) {
	t.Helper()
	if _, err := c.Session().Login(context.Background(), nextcrm.LoginCredentials{
		Username: username,
		Password: password,
	}); err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
}
