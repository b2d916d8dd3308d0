package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics - метрики прогонов рассылки
type Metrics struct {
	runs       *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics создает и регистрирует метрики рассылки
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neighbours_dispatch_runs_total",
			Help: "Total number of dispatch runs by result",
		}, []string{"result"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "neighbours_dispatch_deliveries_total",
			Help: "Total number of per-recipient delivery attempts by channel and status",
		}, []string{"channel", "status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "neighbours_dispatch_duration_seconds",
			Help:    "Duration of a dispatch run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
	reg.MustRegister(m.runs, m.deliveries, m.duration)
	return m
}

// RegisterPresenceGauge публикует число активных подключений реестра
func RegisterPresenceGauge(reg prometheus.Registerer, size func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "neighbours_presence_sessions",
		Help: "Number of live realtime sessions in the presence registry",
	}, func() float64 { return float64(size()) }))
}

func (m *Metrics) observeRun(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeDelivery(channel, status string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(channel, status).Inc()
}
