// Package metrics provides Prometheus exporters for application metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the congregation backend.
var (
	// Points ledger.
	PointsAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "points_awarded_total",
			Help: "Total reward points awarded",
		},
		[]string{"action"},
	)

	AwardsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "points_awards_skipped_total",
			Help: "Award requests that granted nothing",
		},
		[]string{"reason"},
	)

	// Rewards.
	RedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_redemptions_total",
			Help: "Redemption attempts by outcome",
		},
		[]string{"outcome"},
	)

	PointsRedeemedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "points_redeemed_total",
			Help: "Total reward points spent on redemptions",
		},
	)

	RedemptionDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reward_redemption_duration_seconds",
			Help:    "Time taken by the redemption transaction",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	// Picnic.
	PicnicRegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "picnic_registrations_total",
			Help: "Picnic registrations by kind",
		},
		[]string{"kind"},
	)

	PicnicRegistrations = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "picnic_registrations",
			Help: "Current number of picnic registrations",
		},
		[]string{"year"},
	)

	PicnicReportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picnic_reports_total",
			Help: "Coordinator reports generated",
		},
	)

	PicnicFallbackCoordinatorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "picnic_fallback_coordinators_total",
			Help: "Games whose coordinator had to be reused",
		},
	)

	// Membership.
	AttendanceMarkedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_marked_total",
			Help: "Attendance records created",
		},
		[]string{"kind"},
	)

	MembersPromotedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "members_promoted_total",
			Help: "Role promotions",
		},
		[]string{"role"},
	)

	// Scheduler metrics.
	SchedulerJobsRunTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_jobs_run_total",
			Help: "Total scheduler job executions",
		},
		[]string{"job", "status"},
	)

	SchedulerNotificationsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_notifications_failed_total",
			Help: "Total failed notification attempts",
		},
		[]string{"reason"},
	)

	SchedulerLastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp",
			Help: "Unix timestamp of last scheduler run",
		},
		[]string{"job"},
	)

	SchedulerJobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Time taken to execute a scheduler job",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1s to ~128s
		},
		[]string{"job"},
	)

	// HTTP.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordPointsAwarded records points granted for an action.
func RecordPointsAwarded(action string, points int) {
	PointsAwardedTotal.WithLabelValues(action).Add(float64(points))
}

// RecordAwardSkipped records an award request that granted nothing.
func RecordAwardSkipped(reason string) {
	AwardsSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordRedemption records a redemption attempt outcome.
func RecordRedemption(outcome string) {
	RedemptionsTotal.WithLabelValues(outcome).Inc()
}

// RecordPointsRedeemed adds spent points.
func RecordPointsRedeemed(points int) {
	PointsRedeemedTotal.Add(float64(points))
}

// ObserveRedemptionDuration observes the duration of a redemption.
func ObserveRedemptionDuration(seconds float64) {
	RedemptionDurationSeconds.Observe(seconds)
}

// RecordPicnicRegistration records a registration ("new" or "update").
func RecordPicnicRegistration(kind string) {
	PicnicRegistrationsTotal.WithLabelValues(kind).Inc()
}

// SetPicnicRegistrations sets the registration count for a year.
func SetPicnicRegistrations(year string, count int) {
	PicnicRegistrations.WithLabelValues(year).Set(float64(count))
}

// RecordPicnicReport records a generated coordinator report.
func RecordPicnicReport(fallbacks int) {
	PicnicReportsTotal.Inc()
	PicnicFallbackCoordinatorsTotal.Add(float64(fallbacks))
}

// RecordAttendanceMarked records a new attendance ("member" or "usher").
func RecordAttendanceMarked(kind string) {
	AttendanceMarkedTotal.WithLabelValues(kind).Inc()
}

// RecordMemberPromoted records a promotion to role.
func RecordMemberPromoted(role string) {
	MembersPromotedTotal.WithLabelValues(role).Inc()
}

// RecordSchedulerJobRun records a scheduler job execution.
func RecordSchedulerJobRun(job, status string) {
	SchedulerJobsRunTotal.WithLabelValues(job, status).Inc()
}

// RecordSchedulerNotificationFailed records a failed notification attempt.
func RecordSchedulerNotificationFailed(reason string) {
	SchedulerNotificationsFailedTotal.WithLabelValues(reason).Inc()
}

// SetSchedulerLastRun sets the timestamp of the last run of job.
func SetSchedulerLastRun(job string) {
	SchedulerLastRunTimestamp.WithLabelValues(job).SetToCurrentTime()
}

// ObserveSchedulerJobDuration observes the duration of a scheduler job.
func ObserveSchedulerJobDuration(job string, seconds float64) {
	SchedulerJobDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(method, route, status string, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(seconds)
}
