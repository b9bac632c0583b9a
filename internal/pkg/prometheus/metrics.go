package prometheus

import "github.com/prometheus/client_golang/prometheus"

const namespace = "teleworker"

var (
	TickTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_total",
		Help:      "Scheduling ticks run.",
	})

	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Wall time of a scheduling tick.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	})

	RemindersFired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminders_fired_total",
		Help:      "Reminders dispatched.",
	})

	// stage: reload, classify, pipeline, persist, deferred
	ReminderFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminder_failures_total",
		Help:      "Per-reminder failures by stage.",
	}, []string{"stage"})

	ConditionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "condition_errors_total",
		Help:      "Condition resolutions that failed and were treated as not met.",
	}, []string{"kind"})

	NotifySends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notify_sends_total",
		Help:      "Text notifications by channel and result.",
	}, []string{"channel", "result"})

	VoiceCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "voice_calls_total",
		Help:      "Voice calls by channel and result.",
	}, []string{"channel", "result"})
)

func init() {
	registry.MustRegister(
		TickTotal,
		TickDuration,
		RemindersFired,
		ReminderFailures,
		ConditionErrors,
		NotifySends,
		VoiceCalls,
	)
}
