package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type session struct {
	mu   sync.Mutex
	pair *goIdentity.TokenPair
}

type runner struct {
	engine      *goIdentity.Engine
	users       *directory
	concurrency int
	limiter     *rate.Limiter

	sessions []session
}

// drive runs ops calls of op across the worker pool. op returns false on
// failure.
func (r *runner) drive(ctx context.Context, ops int, op func(ctx context.Context, rng *rand.Rand, i int) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		failures  atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, ops)
	)

	start := time.Now()
	for w := 0; w < r.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(worker)))
			local := make([]time.Duration, 0, ops/r.concurrency+1)
			defer func() {
				mu.Lock()
				latencies = append(latencies, local...)
				mu.Unlock()
			}()
			for {
				i := int(cursor.Add(1)) - 1
				if i >= ops || ctx.Err() != nil {
					return
				}
				if r.limiter != nil {
					if err := r.limiter.Wait(ctx); err != nil {
						return
					}
				}
				t0 := time.Now()
				ok := op(ctx, rng, i)
				local = append(local, time.Since(t0))
				if !ok {
					failures.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures.Load())
}

func (r *runner) issuePhase(ctx context.Context, ops int) phaseStats {
	n := len(r.users.ids())
	r.sessions = make([]session, n)
	return r.drive(ctx, ops, func(ctx context.Context, _ *rand.Rand, i int) bool {
		// one refresh session per user, so logins for the same user are
		// serialized to keep the stored pair current
		s := &r.sessions[i%n]
		s.mu.Lock()
		defer s.mu.Unlock()
		pair, err := r.engine.Issue(ctx, goIdentity.Credentials{
			Identifier: r.users.identifier(i),
			Password:   loadtestPassword,
			IP:         fmt.Sprintf("10.0.%d.%d", (i/250)%250, i%250),
		})
		if err != nil {
			return false
		}
		s.pair = pair
		return true
	})
}

func (r *runner) validatePhase(ctx context.Context, ops int) phaseStats {
	return r.drive(ctx, ops, func(ctx context.Context, rng *rand.Rand, _ int) bool {
		s := &r.sessions[rng.IntN(len(r.sessions))]
		s.mu.Lock()
		pair := s.pair
		s.mu.Unlock()
		if pair == nil {
			return false
		}
		_, err := r.engine.Validate(ctx, pair.AccessToken)
		return err == nil
	})
}

func (r *runner) refreshPhase(ctx context.Context, ops int) phaseStats {
	return r.drive(ctx, ops, func(ctx context.Context, rng *rand.Rand, _ int) bool {
		s := &r.sessions[rng.IntN(len(r.sessions))]
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.pair == nil {
			return false
		}
		next, err := r.engine.Refresh(ctx, s.pair.RefreshToken)
		if err != nil {
			return false
		}
		s.pair = next
		return true
	})
}

func (r *runner) resolvePhase(ctx context.Context, ops int) phaseStats {
	ids := r.users.ids()
	return r.drive(ctx, ops, func(ctx context.Context, rng *rand.Rand, _ int) bool {
		_, err := r.engine.ResolvePermissions(ctx, ids[rng.IntN(len(ids))])
		return err == nil
	})
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
		return phaseStats{total: total, failures: failures}
	}
	slices.Sort(samples)
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

func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	return sorted[(len(sorted)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%-9s ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
