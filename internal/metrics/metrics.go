package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total emails sent",
		},
	)

	EmailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "email_failures_total",
			Help: "Total failed emails",
		},
	)

	EmailsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_skipped_total",
			Help: "Recipients skipped because the ledger already has a sent entry",
		},
	)

	ContentFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "content_fallbacks_total",
			Help: "AI generations that fell back to the static template",
		},
	)

	LedgerWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_write_failures_total",
			Help: "Ledger entries that could not be persisted",
		},
	)

	Campaigns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaigns_total",
			Help: "Finished campaigns by terminal status",
		},
		[]string{"status"},
	)
)

func Init() {
	prometheus.MustRegister(EmailsSent)
	prometheus.MustRegister(EmailFailures)
	prometheus.MustRegister(EmailsSkipped)
	prometheus.MustRegister(ContentFallbacks)
	prometheus.MustRegister(LedgerWriteFailures)
	prometheus.MustRegister(Campaigns)
}
