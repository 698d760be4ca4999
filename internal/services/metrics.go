package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricPrintJobsTotal     = "printbridge_print_jobs_total"
	MetricDrawerKicksTotal   = "printbridge_drawer_kicks_total"
	MetricAssetFailuresTotal = "printbridge_asset_fetch_failures_total"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics counts print outcomes. A nil *Metrics records nothing.
type Metrics struct {
	printJobs     *prometheus.CounterVec
	drawerKicks   *prometheus.CounterVec
	assetFailures prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		printJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPrintJobsTotal,
			Help: "Print jobs by kind and result",
		}, []string{"kind", "result"}),
		drawerKicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricDrawerKicksTotal,
			Help: "Cash drawer kicks by result",
		}, []string{"result"}),
		assetFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricAssetFailuresTotal,
			Help: "Logo and image fetches that were dropped",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.printJobs, m.drawerKicks, m.assetFailures)
	}
	return m
}

func (m *Metrics) printJob(kind string, ok bool) {
	if m == nil {
		return
	}
	m.printJobs.WithLabelValues(kind, resultLabel(ok)).Inc()
}

func (m *Metrics) drawerKick(ok bool) {
	if m == nil {
		return
	}
	m.drawerKicks.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *Metrics) assetFailure() {
	if m == nil {
		return
	}
	m.assetFailures.Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return resultSuccess
	}
	return resultFailure
}
