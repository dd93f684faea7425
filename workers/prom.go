package workers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Instruments are the local prometheus collectors of the dispatch engine.
type Instruments struct {
	dispatches   *prometheus.CounterVec
	duration     prometheus.Histogram
	collabErrors *prometheus.CounterVec
	tasks        *prometheus.CounterVec
}

// MustNewInstruments registers the collectors on reg. A collector that is
// already registered is reused, so several engines may share one registry.
func MustNewInstruments(reg prometheus.Registerer) *Instruments {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	dispatches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stagebased",
			Name:      "dispatch_total",
			Help:      "Dispatch attempts by outcome.",
		},
		[]string{"outcome"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "stagebased",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent in one dispatch attempt, claim to final write.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	collabErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stagebased",
			Name:      "collaborator_errors_total",
			Help:      "Failed calls to remote services.",
		},
		[]string{"service"},
	)
	tasks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stagebased",
			Name:      "tasks_total",
			Help:      "Queued tasks by name and result.",
		},
		[]string{"task", "result"},
	)

	collectors := []prometheus.Collector{dispatches, duration, collabErrors, tasks}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			already, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				panic(err)
			}
			switch collector {
			case dispatches:
				dispatches = already.ExistingCollector.(*prometheus.CounterVec)
			case duration:
				duration = already.ExistingCollector.(prometheus.Histogram)
			case collabErrors:
				collabErrors = already.ExistingCollector.(*prometheus.CounterVec)
			case tasks:
				tasks = already.ExistingCollector.(*prometheus.CounterVec)
			}
		}
	}

	return &Instruments{
		dispatches:   dispatches,
		duration:     duration,
		collabErrors: collabErrors,
		tasks:        tasks,
	}
}

func (i *Instruments) observeDispatch(outcome string, started time.Time) {
	i.dispatches.WithLabelValues(outcome).Inc()
	i.duration.Observe(time.Since(started).Seconds())
}

func (i *Instruments) collaboratorError(service string) {
	i.collabErrors.WithLabelValues(service).Inc()
}

func (i *Instruments) task(name string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	i.tasks.WithLabelValues(name, result).Inc()
}
