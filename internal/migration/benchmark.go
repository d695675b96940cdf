package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cacheshift/cacheshift/internal/store"
	"github.com/cacheshift/cacheshift/pkg/logger"
)

const (
	latencyProbes = 10
	throughputOps = 100
)

// StoreBenchmark is the measured performance of one store.
type StoreBenchmark struct {
	Latency    time.Duration
	Throughput float64 // ops/sec
	Info       store.ServerInfo
}

// PerformanceReport compares source and target performance to inform a
// go/no-go decision.
type PerformanceReport struct {
	Source StoreBenchmark
	Target StoreBenchmark

	Recommendation string
	// Error carries benchmark failures; benchmarking is diagnostic, so
	// failures surface here instead of aborting the run.
	Error string
}

// Comparator benchmarks latency and throughput of both stores using
// disposable keys that are cleaned up on every path.
type Comparator struct {
	source store.Store
	target store.Store
	log    *logger.Logger
}

// NewComparator creates a performance comparator.
func NewComparator(source, target store.Store, log *logger.Logger) *Comparator {
	return &Comparator{source: source, target: target, log: log}
}

// Compare benchmarks both stores and derives a recommendation.
func (c *Comparator) Compare(ctx context.Context) *PerformanceReport {
	report := &PerformanceReport{}

	src, err := c.benchmarkStore(ctx, c.source)
	if err != nil {
		report.Error = fmt.Sprintf("source benchmark: %v", err)
		return report
	}
	report.Source = src

	tgt, err := c.benchmarkStore(ctx, c.target)
	if err != nil {
		report.Error = fmt.Sprintf("target benchmark: %v", err)
		return report
	}
	report.Target = tgt

	report.Recommendation = recommend(report)

	c.log.WithFields(map[string]string{
		"source_latency": report.Source.Latency.String(),
		"target_latency": report.Target.Latency.String(),
	}).Info("performance comparison complete")

	return report
}

func (c *Comparator) benchmarkStore(ctx context.Context, s store.Store) (StoreBenchmark, error) {
	bench := StoreBenchmark{}

	// Round-trip latency: mean of lightweight liveness probes
	start := time.Now()
	for i := 0; i < latencyProbes; i++ {
		if err := s.Ping(ctx); err != nil {
			return bench, fmt.Errorf("ping %s: %v", s.Addr(), err)
		}
	}
	bench.Latency = time.Since(start) / latencyProbes

	// Throughput: set + get + delete rounds under a disposable namespace
	prefix := fmt.Sprintf("cacheshift:bench:%s:", uuid.NewString())
	keys := make([]string, throughputOps)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s%d", prefix, i)
	}

	// Benchmark keys must never leak into the keyspace under test, even
	// when a round fails halfway through.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := s.Delete(cleanupCtx, keys...); err != nil {
			c.log.Warnf("benchmark cleanup on %s: %v", s.Addr(), err)
		}
	}()

	start = time.Now()
	for _, key := range keys {
		if err := s.Set(ctx, key, "benchmark-value", time.Minute); err != nil {
			return bench, fmt.Errorf("set on %s: %v", s.Addr(), err)
		}
	}
	for _, key := range keys {
		if _, err := s.Get(ctx, key); err != nil {
			return bench, fmt.Errorf("get on %s: %v", s.Addr(), err)
		}
	}
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return bench, fmt.Errorf("delete on %s: %v", s.Addr(), err)
		}
	}
	elapsed := time.Since(start).Seconds()
	if elapsed > 0 {
		bench.Throughput = float64(3*throughputOps) / elapsed
	}

	if info, err := s.ServerInfo(ctx); err == nil {
		bench.Info = info
	}

	return bench, nil
}

func recommend(report *PerformanceReport) string {
	if report.Target.Latency > report.Source.Latency*3/2 {
		return fmt.Sprintf(
			"target latency (%s) is more than 1.5x source latency (%s); check network path and target configuration before cutover",
			report.Target.Latency, report.Source.Latency)
	}
	if report.Target.Throughput < report.Source.Throughput*0.8 {
		return fmt.Sprintf(
			"target throughput (%.0f ops/sec) is below 80%% of source (%.0f ops/sec); consider a larger target instance",
			report.Target.Throughput, report.Source.Throughput)
	}
	return "target performance looks good for cutover"
}
