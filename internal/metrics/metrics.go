package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	ChatRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "saathi_chat_requests_total",
			Help: "Total chat pipeline runs",
		},
	)

	TierFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saathi_tier_fallbacks_total",
			Help: "Generation tier transitions taken on failure",
		},
		[]string{"from", "to"},
	)

	RepliesByTier = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saathi_replies_total",
			Help: "Replies returned, by terminal tier",
		},
		[]string{"tier"},
	)

	// Safety metrics
	CrisisDetections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saathi_crisis_detections_total",
			Help: "Crisis assessments by risk level",
		},
		[]string{"level"},
	)

	EscalationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "saathi_escalations_created_total",
			Help: "Escalation records created",
		},
	)

	EscalationsDeduped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "saathi_escalations_deduped_total",
			Help: "High-risk detections suppressed by the cooldown window",
		},
	)

	// Privacy metrics
	AccessDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saathi_access_denials_total",
			Help: "Privacy-gated reads denied",
		},
		[]string{"resource"},
	)
)
