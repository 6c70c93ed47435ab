package observability

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	lastScoreGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dayscore",
		Subsystem: "daily",
		Name:      "last_score",
		Help:      "Most recently computed daily productivity score.",
	})
	daysScoredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dayscore",
		Subsystem: "daily",
		Name:      "days_scored_total",
		Help:      "Number of days scored, by grade.",
	}, []string{"grade"})

	weeklyAvgGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dayscore",
		Subsystem: "weekly",
		Name:      "avg_daily_score",
		Help:      "Average daily score of the most recently analyzed period.",
	})
	consistencyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dayscore",
		Subsystem: "weekly",
		Name:      "consistency",
		Help:      "Consistency (0-100) of the most recently analyzed period.",
	})
	workoutCorrelationGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dayscore",
		Subsystem: "weekly",
		Name:      "workout_correlation",
		Help:      "Workout correlation (-1 to 1) of the most recently analyzed period.",
	})

	sourceFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dayscore",
		Subsystem: "collector",
		Name:      "source_failures_total",
		Help:      "Number of failed fetches per data source.",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(
		lastScoreGauge, daysScoredCounter,
		weeklyAvgGauge, consistencyGauge, workoutCorrelationGauge,
		sourceFailureCounter,
	)
}

// RecordDailyScore updates the last score gauge and counts the day.
func RecordDailyScore(score int, grade string) {
	lastScoreGauge.Set(float64(score))
	daysScoredCounter.WithLabelValues(grade).Inc()
}

// RecordAnalysis updates the period gauges.
func RecordAnalysis(avg, consistency int, correlation float64) {
	weeklyAvgGauge.Set(float64(avg))
	consistencyGauge.Set(float64(consistency))
	if !math.IsNaN(correlation) {
		workoutCorrelationGauge.Set(correlation)
	}
}

// RecordSourceFailure counts a failed fetch from source.
func RecordSourceFailure(source string) {
	sourceFailureCounter.WithLabelValues(source).Inc()
}
