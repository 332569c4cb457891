package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DialerMetrics struct {
	CallOutcomesTotal  *prometheus.CounterVec
	CandidatesSelected prometheus.Histogram
	RunDuration        prometheus.Histogram
	RunsTotal          prometheus.Counter
}

type GatewayMetrics struct {
	SMSSentTotal             prometheus.Counter
	PaymentLinksCreatedTotal prometheus.Counter
}

var (
	Dialer = DialerMetrics{
		CallOutcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collections_engine_call_outcomes_total",
				Help: "Total number of dispatch outcomes by status.",
			},
			[]string{"outcome"},
		),
		CandidatesSelected: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "collections_engine_candidates_selected",
				Help:    "Number of candidates selected per daily run.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		RunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "collections_engine_daily_run_duration_seconds",
				Help:    "Duration of daily call runs.",
				Buckets: []float64{.1, .5, 1, 5, 15, 60, 300, 900},
			},
		),
		RunsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "collections_engine_daily_runs_total",
				Help: "Total number of daily call runs started.",
			},
		),
	}

	Gateway = GatewayMetrics{
		SMSSentTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "collections_engine_sms_sent_total",
				Help: "Total number of SMS messages handed to the gateway.",
			},
		),
		PaymentLinksCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "collections_engine_payment_links_created_total",
				Help: "Total number of payment links created.",
			},
		),
	}
)

func RecordCallOutcome(outcome string) {
	Dialer.CallOutcomesTotal.WithLabelValues(outcome).Inc()
}

func RecordDailyRun(candidates int, duration time.Duration) {
	Dialer.RunsTotal.Inc()
	Dialer.CandidatesSelected.Observe(float64(candidates))
	Dialer.RunDuration.Observe(duration.Seconds())
}

func RecordSMSSent() {
	Gateway.SMSSentTotal.Inc()
}

func RecordPaymentLinkCreated() {
	Gateway.PaymentLinksCreatedTotal.Inc()
}
