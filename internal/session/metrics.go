package session

import "github.com/prometheus/client_golang/prometheus"

// MemoryGauge reports how many sessions s holds. The caller registers it.
func MemoryGauge(s *MemoryStore) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "storyquest_sessions_in_memory",
			Help: "Sessions held by the in-memory store, expired ones included until swept.",
		},
		func() float64 { return float64(s.Len()) },
	)
}
