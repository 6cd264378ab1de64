package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siquiz_attempts_started_total",
			Help: "Total number of quiz attempts started",
		},
	)

	attemptsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siquiz_attempts_completed_total",
			Help: "Total number of quiz attempts graded",
		},
		[]string{"timed_out"},
	)

	gradingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "siquiz_grading_duration_seconds",
			Help:    "Time spent grading and persisting a submitted attempt",
			Buckets: prometheus.DefBuckets,
		},
	)

	aiQuestionsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siquiz_ai_questions_generated_total",
			Help: "Questions returned by the LLM, by outcome",
		},
		[]string{"result"}, // accepted | rejected
	)
)

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
