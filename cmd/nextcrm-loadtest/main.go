package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	nextcrm "github.com/MrEthical07/nextcrm"
	"github.com/MrEthical07/nextcrm/internal/fakebackend"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const loadPassword = "LoadTest123"

type worker struct {
	client   *nextcrm.Client
	username string
}

func main() {
	var (
		users       = flag.Int("users", 32, "number of signed-in clients")
		concurrency = flag.Int("concurrency", 8, "concurrent callers per client")
		ops         = flag.Int("ops", 20000, "total calls across all clients")
		expireEvery = flag.Duration("expire-every", 250*time.Millisecond, "interval between access token expiries")
		refreshLag  = flag.Duration("refresh-delay", 20*time.Millisecond, "latency added to every refresh")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		verbose     = flag.Bool("v", false, "log gateway activity")
		withOTel    = flag.Bool("otel", false, "publish client metrics through an OpenTelemetry meter and print the totals")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 || *expireEvery <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, ops, and expire-every must be > 0")
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			logger = l
		}
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	// ---------- infrastructure ----------
	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	var (
		cleanup func()
		rdb     redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = rdb.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	backend, err := fakebackend.New(fakebackend.Config{
		AccessTTL:        time.Hour,
		BreakerThreshold: 1 << 20,
		Logger:           logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fake backend: %v\n", err)
		os.Exit(1)
	}
	backend.SetRefreshDelay(*refreshLag)
	srv := httptest.NewServer(backend)
	defer srv.Close()

	// ---------- clients ----------
	fmt.Printf("signing in %d clients...\n", *users)
	startLogin := time.Now()
	workers := make([]worker, *users)
	g, gctx := errgroup.WithContext(ctx)
	for i := range workers {
		g.Go(func() error {
			username := fmt.Sprintf("load-%d", i)
			if _, err := backend.AddUser(username, loadPassword, nil); err != nil {
				return err
			}
			cfg := nextcrm.DefaultConfig(srv.URL)
			cfg.Metrics.Enabled = true
			client, err := nextcrm.New().
				WithConfig(cfg).
				WithLogger(logger).
				WithPersister(nextcrm.NewRedisPersister(rdb, cfg.Session, username)).
				Build()
			if err != nil {
				return err
			}
			workers[i] = worker{client: client, username: username}
			_, err = client.Session().Login(gctx, nextcrm.LoginCredentials{Username: username, Password: loadPassword})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		for _, w := range workers {
			w.client.Close()
		}
	}()
	fmt.Printf("signed in in %s\n", time.Since(startLogin).Round(time.Millisecond))

	var report *otelReport
	if *withOTel {
		report, err = newOTelReport(workers)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		defer func() { _ = report.Close(ctx) }()
	}

	// ---------- expiry schedule ----------
	var expiries atomic.Int64
	stop := make(chan struct{})
	var expWG sync.WaitGroup
	expWG.Add(1)
	go func() {
		defer expWG.Done()
		t := time.NewTicker(*expireEvery)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				backend.ExpireAccessTokens()
				expiries.Add(1)
			}
		}
	}()

	stats := runCallPhase(ctx, workers, *ops, *concurrency)
	close(stop)
	expWG.Wait()

	var sessionExpired, redirects, queued uint64
	for _, w := range workers {
		snap := w.client.MetricsSnapshot()
		redirects += snap.Counters[nextcrm.MetricLoginRedirect]
		queued += snap.Counters[nextcrm.MetricRequestQueued]
		if !w.client.Session().IsAuthenticated() {
			sessionExpired++
		}
	}

	fmt.Println("---- results ----")
	printStats("calls", stats)
	n := expiries.Load()
	perExpiry := 0.0
	if n > 0 {
		perExpiry = float64(backend.RefreshCalls()) / float64(n*int64(len(workers)))
	}
	fmt.Printf("expiries=%d refreshes=%d refresh_calls=%d per_client_per_expiry=%.2f queued=%d redirects=%d signed_out=%d\n",
		n, backend.Refreshes(), backend.RefreshCalls(), perExpiry, queued, redirects, sessionExpired)

	if report != nil {
		if err := report.Print(ctx, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}
}

func runCallPhase(ctx context.Context, workers []worker, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for wi := range workers {
		for c := 0; c < concurrency; c++ {
			wg.Add(1)
			go func(w worker, seed int64) {
				defer wg.Done()
				r := rand.New(rand.NewSource(time.Now().UnixNano() + seed*7919))
				for {
					i := int(atomic.AddInt64(&cursor, 1)) - 1
					if i >= ops {
						return
					}
					t0 := time.Now()
					err := call(ctx, w.client, r.Intn(4))
					d := time.Since(t0)
					if err != nil {
						atomic.AddInt64(&failures, 1)
					}
					mu.Lock()
					latencies = append(latencies, d)
					mu.Unlock()
				}
			}(workers[wi], int64(wi*concurrency+c))
		}
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func call(ctx context.Context, c *nextcrm.Client, kind int) error {
	var err error
	switch kind {
	case 0:
		_, err = c.ListContracts(ctx, nextcrm.ContractFilters{PageSize: 10})
	case 1:
		_, err = c.DashboardStats(ctx)
	case 2:
		_, err = c.ListCurrencies(ctx, nextcrm.ListParams{})
	default:
		_, err = c.Profile(ctx)
	}
	return err
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
