package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/provider/local"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const accountPassword = "load-test-password"

func main() {
	var (
		accounts    = flag.Int("accounts", 200, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent submitters")
		ops         = flag.Int("ops", 5000, "operations per phase")
		queueSize   = flag.Int("queue", 16, "controller queue size")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "gsload", "redis key prefix")
	)
	flag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 || *queueSize < 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Cheap hashing keeps the run dominated by queueing, not argon2.
	pw := password.DefaultConfig()
	pw.Memory = 8 * 1024

	svc, err := local.New(local.Options{
		Redis:    client,
		Prefix:   *prefix,
		Password: pw,
		Tokens: jwt.Config{
			TTL:           time.Hour,
			SigningMethod: jwt.MethodHS256,
			PrivateKey:    []byte("gosession-load-test-signing-key"),
		},
		Logger: quiet,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "local provider: %v\n", err)
		os.Exit(1)
	}

	emails := make([]string, *accounts)
	fmt.Printf("seeding %d accounts...\n", *accounts)
	startSeed := time.Now()
	for i := range emails {
		emails[i] = fmt.Sprintf("user-%d@load.test", i)
		if _, err := svc.SignUp(ctx, emails[i], accountPassword); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := svc.SignOut(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "seed sign-out failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	cfg := goSession.DefaultConfig()
	cfg.Controller.QueueSize = *queueSize
	c, err := goSession.New().WithConfig(cfg).WithProvider(svc).WithLogger(quiet).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "controller: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	sub := c.Subscribe()
	defer sub.Close()
	var observed atomic.Int64
	go func() {
		for range sub.C {
			observed.Add(1)
		}
	}()

	signInStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		return c.SignIn(ctx, emails[r.Intn(len(emails))], accountPassword)
	})
	mixedStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		switch r.Intn(3) {
		case 0:
			return c.SignIn(ctx, emails[r.Intn(len(emails))], accountPassword)
		case 1:
			return c.SignOut(ctx)
		default:
			return c.RefreshFromProvider(ctx)
		}
	})

	final := c.State()
	fmt.Println("---- results ----")
	printStats("sign-in", signInStats)
	printStats("mixed", mixedStats)
	fmt.Printf("final: signed_in=%v generation=%d observed=%d\n", final.SignedIn, final.Generation, observed.Load())

	snap := c.MetricsSnapshot()
	for id := goSession.MetricID(0); id < goSession.MetricProviderLatency; id++ {
		if v := snap.Counters[id]; v > 0 {
			fmt.Printf("  %s=%d\n", id, v)
		}
	}
}

func runPhase(ops, concurrency int, call func(*rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := call(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
