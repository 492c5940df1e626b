package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics captures domain-level counters for the practice API.
type Metrics struct {
	appointmentsCreated *prometheus.CounterVec
	schedulingConflicts prometheus.Counter
	statusTransitions   *prometheus.CounterVec
	invoicesCreated     prometheus.Counter
	paymentsRecorded    *prometheus.CounterVec
	paymentReversals    *prometheus.CounterVec
	remindersQueued     prometheus.Counter
}

var (
	metricsOnce sync.Once
	registered  *Metrics
)

// New returns the singleton domain metrics registry.
func New() *Metrics {
	metricsOnce.Do(func() {
		registered = &Metrics{
			appointmentsCreated: newCounterVec(
				"dentora_appointments_created_total",
				"Appointments created, by practitioner outcome.",
				[]string{"status"},
			),
			schedulingConflicts: newCounter(
				"dentora_scheduling_conflicts_total",
				"Booking attempts rejected by the conflict checker.",
			),
			statusTransitions: newCounterVec(
				"dentora_appointment_transitions_total",
				"Appointment lifecycle transitions.",
				[]string{"from", "to"},
			),
			invoicesCreated: newCounter(
				"dentora_invoices_created_total",
				"Invoices created.",
			),
			paymentsRecorded: newCounterVec(
				"dentora_payments_recorded_total",
				"Payments applied to invoices, by method.",
				[]string{"method"},
			),
			paymentReversals: newCounterVec(
				"dentora_payment_reversals_total",
				"Payment voids and refunds.",
				[]string{"kind"},
			),
			remindersQueued: newCounter(
				"dentora_reminders_queued_total",
				"Appointment reminders queued by the sweeper.",
			),
		}
	})
	return registered
}

func (m *Metrics) AppointmentCreated(status string) {
	if m == nil {
		return
	}
	m.appointmentsCreated.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *Metrics) SchedulingConflict() {
	if m == nil {
		return
	}
	m.schedulingConflicts.Inc()
}

func (m *Metrics) StatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *Metrics) InvoiceCreated() {
	if m == nil {
		return
	}
	m.invoicesCreated.Inc()
}

func (m *Metrics) PaymentRecorded(method string) {
	if m == nil {
		return
	}
	m.paymentsRecorded.WithLabelValues(normalizeLabel(method)).Inc()
}

func (m *Metrics) PaymentReversal(kind string) {
	if m == nil {
		return
	}
	m.paymentReversals.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *Metrics) ReminderQueued() {
	if m == nil {
		return
	}
	m.remindersQueued.Inc()
}

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}

func newCounter(name, help string) prometheus.Counter {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	if err := prometheus.Register(counter); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return already.ExistingCollector.(prometheus.Counter)
		}
	}
	return counter
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	if err := prometheus.Register(vec); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return already.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return vec
}
