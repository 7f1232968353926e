package imagegen

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visiond",
			Subsystem: "tasks",
			Name:      "submitted_total",
			Help:      "Accepted generation tasks by mode",
		},
		[]string{"mode"},
	)

	tasksFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visiond",
			Subsystem: "tasks",
			Name:      "finished_total",
			Help:      "Finished generation tasks by mode and terminal status",
		},
		[]string{"mode", "status"},
	)

	taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "visiond",
			Subsystem: "tasks",
			Name:      "duration_seconds",
			Help:      "Time from worker start to terminal status",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
		},
		[]string{"mode"},
	)

	// The store never forgets tasks; this tracks its growth.
	tasksTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "visiond",
			Subsystem: "tasks",
			Name:      "tracked",
			Help:      "Tasks held in memory since start",
		},
	)
)

func init() {
	prometheus.MustRegister(tasksSubmitted, tasksFinished, taskDuration, tasksTracked)
}
