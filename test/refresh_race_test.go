//go:build integration
// +build integration

package test

import (
	"context"
	"sync"
	"testing"
	"time"

	nextcrm "github.com/MrEthical07/nextcrm"
	"github.com/MrEthical07/nextcrm/gateway"
	"github.com/MrEthical07/nextcrm/internal/fakebackend"
)

func TestRefreshRaceSingleRefreshPerExpiry(t *testing.T) {
	env := newIntegrationEnv(t, fakebackend.DefaultConfig())
	nav := &countingNavigator{}
	c := env.client(t, "race", nav)
	mustLogin(t, c, fakebackend.DemoUsername, fakebackend.DemoPassword)

	env.backend.SetRefreshDelay(100 * time.Millisecond)

	const (
		rounds  = 3
		workers = 16
	)
	for round := 1; round <= rounds; round++ {
		env.backend.ExpireAccessTokens()

		start := make(chan struct{})
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				var err error
				switch i % 3 {
				case 0:
					_, err = c.ListContracts(context.Background(), nextcrm.ContractFilters{})
				case 1:
					_, err = c.DashboardStats(context.Background())
				default:
					_, err = c.ListCurrencies(context.Background(), nextcrm.ListParams{})
				}
				errs <- err
			}(i)
		}
		close(start)
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Fatalf("round %d: unexpected error: %v", round, err)
			}
		}
		if got := env.backend.Refreshes(); got != uint64(round) {
			t.Fatalf("round %d: expected %d refreshes, got %d", round, round, got)
		}
	}

	if nav.Count() != 0 {
		t.Fatalf("expected no login redirect, got %d", nav.Count())
	}
	snap := c.MetricsSnapshot()
	if snap.Counters[nextcrm.MetricRefreshSuccess] != rounds {
		t.Fatalf("expected %d refresh successes, got %d", rounds, snap.Counters[nextcrm.MetricRefreshSuccess])
	}
}

func TestRefreshRaceRevokedRedirectsOnce(t *testing.T) {
	env := newIntegrationEnv(t, fakebackend.DefaultConfig())
	nav := &countingNavigator{}
	c := env.client(t, "revoked", nav)
	mustLogin(t, c, fakebackend.DemoUsername, fakebackend.DemoPassword)

	env.backend.ExpireAccessTokens()
	env.backend.RevokeRefreshTokens()
	env.backend.SetRefreshDelay(50 * time.Millisecond)

	const workers = 12
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _ = c.ListTraders(context.Background(), nextcrm.ListParams{})
		}()
	}
	close(start)
	wg.Wait()

	if nav.Count() != 1 {
		t.Fatalf("expected exactly one redirect, got %d", nav.Count())
	}
	if nav.Last() != gateway.ReasonRefreshRejected {
		t.Fatalf("expected %s, got %s", gateway.ReasonRefreshRejected, nav.Last())
	}
	if c.Session().IsAuthenticated() {
		t.Fatal("expected store cleared after redirect")
	}
}
