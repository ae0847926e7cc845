package metrics

import (
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests    uint64
	errorRequests    uint64
	totalDurationMs  uint64
	bulkSubmitRuns   uint64
	recordsSubmitted uint64
	recordsFailed    uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) RecordBulkSubmit(submitted, failed int) {
	atomic.AddUint64(&c.bulkSubmitRuns, 1)
	atomic.AddUint64(&c.recordsSubmitted, uint64(submitted))
	atomic.AddUint64(&c.recordsFailed, uint64(failed))
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":          total,
		"errorsTotal":            atomic.LoadUint64(&c.errorRequests),
		"avgDurationMs":          avg,
		"totalDurationMs":        totalMs,
		"bulkSubmitRunsTotal":    atomic.LoadUint64(&c.bulkSubmitRuns),
		"recordsSubmittedTotal":  atomic.LoadUint64(&c.recordsSubmitted),
		"recordsSubmitFailTotal": atomic.LoadUint64(&c.recordsFailed),
	}
}
