package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	AuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "schoolhub_auth_attempts_total", Help: "Total register and login attempts"},
		[]string{"operation", "result"},
	)
	ContentOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "schoolhub_content_operations_total", Help: "Total content mutations by operation"},
		[]string{"operation", "result"},
	)
	ChatPushes = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "schoolhub_chat_pushes_total", Help: "Total chat updates pushed to websocket clients"},
	)
	WebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "schoolhub_websocket_clients", Help: "Connected websocket clients"},
	)
)

func Register() {
	prometheus.MustRegister(AuthAttempts, ContentOperations, ChatPushes, WebSocketClients)
}

// Observe counts one operation, labelled by whether err is nil.
func Observe(vec *prometheus.CounterVec, operation string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	vec.WithLabelValues(operation, result).Inc()
}
