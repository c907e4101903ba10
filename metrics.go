package isemail

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	validations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "isemail",
			Name:      "validations_total",
			Help:      "Number of addresses validated, by category of the most severe diagnosis",
		},
		[]string{"category"},
	)
	dnsChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "isemail",
			Name:      "dns_checks_total",
			Help:      "Number of domain checks, by outcome (mx, other, none or error)",
		},
		[]string{"result"},
	)
	rcptVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "isemail",
			Subsystem: "smtp",
			Name:      "rcpt_total",
			Help:      "Number of RCPT TO commands, by verdict (accepted or rejected)",
		},
		[]string{"verdict"},
	)
	reportedMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "isemail",
			Subsystem: "smtp",
			Name:      "messages_total",
			Help:      "Number of messages received and reported",
		},
	)
)

func init() {
	prometheus.MustRegister(validations)
	prometheus.MustRegister(dnsChecks)
	prometheus.MustRegister(rcptVerdicts)
	prometheus.MustRegister(reportedMessages)
}
