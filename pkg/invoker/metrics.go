package invoker

import "sync/atomic"

// Metrics is a snapshot of the invoker's counters.
type Metrics struct {
	Mode              string `json:"mode"`
	Active            int64  `json:"active"`
	Success           uint64 `json:"success"`
	Failure           uint64 `json:"failure"`
	DurationCount     uint64 `json:"duration_count"`
	DurationSumMicros uint64 `json:"duration_sum_micros"`
}

func (inv *Invoker) Metrics() Metrics {
	return Metrics{
		Mode:              inv.mode.String(),
		Active:            atomic.LoadInt64(&inv.mActive),
		Success:           atomic.LoadUint64(&inv.mSuccess),
		Failure:           atomic.LoadUint64(&inv.mFailure),
		DurationCount:     atomic.LoadUint64(&inv.mDuration.count),
		DurationSumMicros: atomic.LoadUint64(&inv.mDuration.sumMicros),
	}
}
