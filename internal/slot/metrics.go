package slot

import "github.com/prometheus/client_golang/prometheus"

var (
	slotRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visiond",
			Subsystem: "slot",
			Name:      "acquire_total",
			Help:      "Slot acquisitions by outcome (hit or miss)",
		},
		[]string{"slot", "variant", "outcome"},
	)

	slotLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visiond",
			Subsystem: "slot",
			Name:      "loads_total",
			Help:      "Model loads by result",
		},
		[]string{"slot", "variant", "result"},
	)

	slotEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visiond",
			Subsystem: "slot",
			Name:      "evictions_total",
			Help:      "Model evictions by reason (switch, unload or failure)",
		},
		[]string{"slot", "variant", "reason"},
	)

	slotLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "visiond",
			Subsystem: "slot",
			Name:      "load_duration_seconds",
			Help:      "Duration of successful model loads in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"slot", "variant"},
	)

	slotResident = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "visiond",
			Subsystem: "slot",
			Name:      "resident",
			Help:      "1 when the variant is loaded in the slot",
		},
		[]string{"slot", "variant"},
	)
)

func init() {
	prometheus.MustRegister(slotRequests, slotLoads, slotEvictions, slotLoadDuration, slotResident)
}
