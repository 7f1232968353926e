package segment

import "github.com/prometheus/client_golang/prometheus"

var (
	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visiond",
			Subsystem: "segment",
			Name:      "requests_total",
			Help:      "Segmentation requests by outcome",
		},
		[]string{"outcome"},
	)

	cutouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "visiond",
			Subsystem: "segment",
			Name:      "cutouts_total",
			Help:      "Transparent cutouts written",
		},
	)
)

func init() {
	prometheus.MustRegister(requests, cutouts)
}
