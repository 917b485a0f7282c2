package job

import (
	"github.com/matchi-app/matchi-api/internal/platform/metrics"
)

// PoolStatsFunc reads the current connection pool statistics.
type PoolStatsFunc func() metrics.PoolStats

// PoolStatsJob copies connection pool statistics into the database gauges.
type PoolStatsJob struct {
	stats   PoolStatsFunc
	metrics *metrics.Metrics
}

func NewPoolStatsJob(stats PoolStatsFunc, m *metrics.Metrics) *PoolStatsJob {
	return &PoolStatsJob{stats: stats, metrics: m}
}

func (j *PoolStatsJob) Run() {
	if j.stats == nil {
		return
	}
	j.metrics.SetDBPoolStats(j.stats())
}
