package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	DepositsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deposits_total",
			Help: "Total number of deposit operations by mailbox kind.",
		},
		[]string{"service", "kind", "result"},
	)

	DrainsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_drains_total",
			Help: "Total number of drain operations by mailbox kind.",
		},
		[]string{"service", "kind", "result"},
	)

	FanoutDevices = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_fanout_devices",
			Help:    "Number of recipient devices per successful deposit.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "kind"},
	)

	DeviceRegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_device_registrations_total",
			Help: "Total number of device registration attempts.",
		},
		[]string{"service", "result"},
	)
)

func MustRegister(serviceName string) {
	HTTPRequestsTotal = HTTPRequestsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	HTTPRequestDurationSeconds = HTTPRequestDurationSeconds.MustCurryWith(prometheus.Labels{"service": serviceName}).(*prometheus.HistogramVec)
	DepositsTotal = DepositsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	DrainsTotal = DrainsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	FanoutDevices = FanoutDevices.MustCurryWith(prometheus.Labels{"service": serviceName}).(*prometheus.HistogramVec)
	DeviceRegistrationsTotal = DeviceRegistrationsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})

	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		DepositsTotal,
		DrainsTotal,
		FanoutDevices,
		DeviceRegistrationsTotal,
	)
}
