package metrics

import "github.com/prometheus/client_golang/prometheus"

// AssistantMetrics exposes counters for the scheduling assistant flows.
// A nil *AssistantMetrics is valid and records nothing.
type AssistantMetrics struct {
	chatTurns       *prometheus.CounterVec
	bookings        *prometheus.CounterVec
	reminders       *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	bookingDuration prometheus.Histogram
}

func NewAssistantMetrics(reg prometheus.Registerer) *AssistantMetrics {
	m := &AssistantMetrics{
		chatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Chat turns handled, by stage the turn started in",
		}, []string{"stage"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Reminder sends by type and outcome",
		}, []string{"type", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "textgen",
			Name:      "fallbacks_total",
			Help:      "Templated fallbacks used instead of generated text",
		}, []string{"reason"}),
		bookingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "duration_seconds",
			Help:      "Latency of booking transactions",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.chatTurns, m.bookings, m.reminders, m.fallbacks, m.bookingDuration)
	return m
}

func (m *AssistantMetrics) ObserveChatTurn(stage string) {
	if m == nil {
		return
	}
	m.chatTurns.WithLabelValues(stage).Inc()
}

func (m *AssistantMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
	m.bookingDuration.Observe(seconds)
}

func (m *AssistantMetrics) ObserveReminder(reminderType string, success bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if success {
		outcome = "sent"
	}
	m.reminders.WithLabelValues(reminderType, outcome).Inc()
}

func (m *AssistantMetrics) ObserveFallback(reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(reason).Inc()
}
