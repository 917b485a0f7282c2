package metrics

// PoolStats is the subset of connection pool statistics exported as gauges.
type PoolStats struct {
	Open  int32
	InUse int32
	Idle  int32
	Max   int32
}

// SetDBPoolStats updates the database pool gauges.
func (m *Metrics) SetDBPoolStats(s PoolStats) {
	m.safeExecute("SetDBPoolStats", func() {
		m.DBConnectionsOpen.Set(float64(s.Open))
		m.DBConnectionsInUse.Set(float64(s.InUse))
		m.DBConnectionsIdle.Set(float64(s.Idle))
		m.DBConnectionsMax.Set(float64(s.Max))
	})
}
