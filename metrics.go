package authcore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the engine's Prometheus instrumentation. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	logins         *prometheus.CounterVec
	signups        prometheus.Counter
	passwordResets prometheus.Counter
	codesIssued    *prometheus.CounterVec
	codeChecks     *prometheus.CounterVec
	sessionsIssued prometheus.Counter
	externalLogins *prometheus.CounterVec
}

// NewMetrics creates and registers the engine metrics. A nil registerer
// returns nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "logins_total",
			Help:      "Password login attempts by result.",
		}, []string{"result"}),
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "signups_total",
			Help:      "Completed signups.",
		}),
		passwordResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "password_resets_total",
			Help:      "Completed password resets.",
		}),
		codesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "codes_issued_total",
			Help:      "Verification codes issued by purpose.",
		}, []string{"purpose"}),
		codeChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "code_checks_total",
			Help:      "Verification code checks by purpose and result.",
		}, []string{"purpose", "result"}),
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "sessions_issued_total",
			Help:      "Sessions minted across all flows.",
		}),
		externalLogins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "external_logins_total",
			Help:      "External identity logins by provider and result.",
		}, []string{"provider", "result"}),
	}

	reg.MustRegister(
		m.logins,
		m.signups,
		m.passwordResets,
		m.codesIssued,
		m.codeChecks,
		m.sessionsIssued,
		m.externalLogins,
	)
	return m
}

func (m *Metrics) login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) signup() {
	if m == nil {
		return
	}
	m.signups.Inc()
}

func (m *Metrics) passwordReset() {
	if m == nil {
		return
	}
	m.passwordResets.Inc()
}

func (m *Metrics) codeIssued(purpose Purpose) {
	if m == nil {
		return
	}
	m.codesIssued.WithLabelValues(purpose.String()).Inc()
}

func (m *Metrics) codeChecked(purpose Purpose, result string) {
	if m == nil {
		return
	}
	m.codeChecks.WithLabelValues(purpose.String(), result).Inc()
}

func (m *Metrics) sessionIssued() {
	if m == nil {
		return
	}
	m.sessionsIssued.Inc()
}

func (m *Metrics) externalLogin(provider, result string) {
	if m == nil {
		return
	}
	m.externalLogins.WithLabelValues(provider, result).Inc()
}
