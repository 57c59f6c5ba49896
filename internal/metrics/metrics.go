package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the process-wide counters. Constructed once in main and
// passed to the HTTP layer; services stay metrics-free.
type Metrics struct {
	PaymentsTotal           *prometheus.CounterVec
	WebhookEventsTotal      *prometheus.CounterVec
	RefundsTotal            *prometheus.CounterVec
	PayoutsTotal            *prometheus.CounterVec
	WalletTransactionsTotal *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PaymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "payments_total",
			Help:      "Payment transitions by resulting status and method.",
		}, []string{"status", "method"}),
		WebhookEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "webhook_events_total",
			Help:      "Processed webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		RefundsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "refunds_total",
			Help:      "Refund executions by channel and outcome.",
		}, []string{"channel", "outcome"}),
		PayoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "payouts_total",
			Help:      "Payout transitions by resulting status.",
		}, []string{"status"}),
		WalletTransactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "wallet_transactions_total",
			Help:      "Ledger entries by type and source.",
		}, []string{"type", "source"}),
	}
	reg.MustRegister(
		m.PaymentsTotal,
		m.WebhookEventsTotal,
		m.RefundsTotal,
		m.PayoutsTotal,
		m.WalletTransactionsTotal,
	)
	return m
}
