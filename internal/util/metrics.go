package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AvailabilityChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warehouse_availability_checks_total",
		Help: "Total number of availability checks by outcome",
	}, []string{"outcome"})

	ReservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warehouse_reservations_total",
		Help: "Total number of reservation requests by result",
	}, []string{"result"})

	ReservationLinesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warehouse_reservation_lines_failed_total",
		Help: "Total number of reservation lines that could not be reserved",
	}, []string{"reason"})

	ReservationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "warehouse_reservation_latency_seconds",
		Help:    "Latency of reservation transactions",
		Buckets: prometheus.DefBuckets,
	})

	ReservationEventsAudited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warehouse_reservation_events_audited_total",
		Help: "Total number of reservation events written to the audit log",
	}, []string{"event_type"})

	AgentToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_tool_calls_total",
		Help: "Total number of tool calls executed by the warehouse agent",
	}, []string{"tool", "status"})

	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_requests_total",
		Help: "Total number of LLM requests",
	}, []string{"provider", "status"})

	LLMRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_request_latency_seconds",
		Help:    "Latency of LLM requests",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
	}, []string{"provider"})

	RAGRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rag_requests_total",
		Help: "Total number of RAG pipeline runs",
	}, []string{"status"})

	RAGRetrievedItems = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rag_retrieved_items",
		Help:    "Number of items retrieved per RAG query",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
