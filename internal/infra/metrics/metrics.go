package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	FeedbackReceivedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feedback_received_total",
		Help: "Количество принятых обращений к автору",
	})
	FeedbackDeliveredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feedback_delivered_total",
		Help: "Обращения, доставленные хотя бы одному адресату",
	})
	FeedbackFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feedback_failed_total",
		Help: "Обращения, не доставленные ни одному адресату",
	})
	RateLimitHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_hits_total",
		Help: "Отказы по лимиту частоты обращений",
	})
	StaffRepliesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "staff_replies_total",
		Help: "Ответы автора, отправленные пользователям",
	})
	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_send_errors_total",
		Help: "Ошибки отправки сообщений ботом",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		FeedbackReceivedTotal,
		FeedbackDeliveredTotal,
		FeedbackFailedTotal,
		RateLimitHitsTotal,
		StaffRepliesTotal,
		BotSendErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
