// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 事件总线与结算相关的指标。标签约定：
//
//	event  —— 事件类型名（即 topic）
//	result —— ok / error / dropped / dlt
var (
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chomp",
		Subsystem: "bus",
		Name:      "events_published_total",
		Help:      "Number of domain events published to the bus.",
	}, []string{"event"})

	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chomp",
		Subsystem: "bus",
		Name:      "events_consumed_total",
		Help:      "Number of domain events consumed, by outcome.",
	}, []string{"event", "result"})

	DeadLetters = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chomp",
		Subsystem: "bus",
		Name:      "dead_letters_total",
		Help:      "Messages moved to the dead-letter topic after exhausting retries.",
	}, []string{"event"})

	HandleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chomp",
		Subsystem: "bus",
		Name:      "handle_duration_seconds",
		Help:      "Time spent handling a single message.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event"})

	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chomp",
		Subsystem: "order",
		Name:      "settlements_total",
		Help:      "Order settlements by outcome (completed / stock_conflict / duplicate / cancelled).",
	}, []string{"outcome"})

	PaymentDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chomp",
		Subsystem: "payment",
		Name:      "decisions_total",
		Help:      "Payment strategy outcomes by method and result.",
	}, []string{"method", "result"})
)
