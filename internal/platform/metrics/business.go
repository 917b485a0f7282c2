package metrics

func (m *Metrics) IncAttendanceTransition(operation, status string) {
	m.safeExecute("IncAttendanceTransition", func() {
		m.AttendanceTransitionsTotal.WithLabelValues(operation, status).Inc()
	})
}

func (m *Metrics) IncWaitlistPromotion() {
	m.safeExecute("IncWaitlistPromotion", func() {
		m.WaitlistPromotionsTotal.Inc()
	})
}

func (m *Metrics) IncCapacityRaceFallback() {
	m.safeExecute("IncCapacityRaceFallback", func() {
		m.CapacityRaceFallbacksTotal.Inc()
	})
}

// IncConflictRetry records a retried unit of work; result is "recovered" or "exhausted".
func (m *Metrics) IncConflictRetry(operation, result string) {
	m.safeExecute("IncConflictRetry", func() {
		m.PersistenceConflictRetriesTotal.WithLabelValues(operation, result).Inc()
	})
}

func (m *Metrics) IncEventCreated() {
	m.safeExecute("IncEventCreated", func() {
		m.EventsCreatedTotal.Inc()
	})
}

func (m *Metrics) IncEventCancelled() {
	m.safeExecute("IncEventCancelled", func() {
		m.EventsCancelledTotal.Inc()
	})
}

func (m *Metrics) AddEventsCompleted(n int) {
	m.safeExecute("AddEventsCompleted", func() {
		m.EventsCompletedTotal.Add(float64(n))
	})
}

func (m *Metrics) IncInfoPostCreated(category string) {
	m.safeExecute("IncInfoPostCreated", func() {
		m.InfoPostsCreatedTotal.WithLabelValues(category).Inc()
	})
}

func (m *Metrics) IncIdempotentReplay(route string) {
	m.safeExecute("IncIdempotentReplay", func() {
		m.IdempotentReplaysTotal.WithLabelValues(route).Inc()
	})
}
