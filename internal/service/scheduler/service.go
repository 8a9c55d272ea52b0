// Package scheduler runs the nightly membership evaluation and the picnic
// coordinator digest.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aimd54/congregation/internal/config"
	"github.com/aimd54/congregation/internal/mattermost"
	prommetrics "github.com/aimd54/congregation/internal/metrics"
	"github.com/aimd54/congregation/internal/models"
	"github.com/aimd54/congregation/internal/service/picnic"
	"github.com/aimd54/congregation/pkg/logger"
)

const (
	jobMembershipEvaluation = "membership_evaluation"
	jobPicnicSummary        = "picnic_summary"
)

// MembershipEvaluator promotes eligible first-timers.
type MembershipEvaluator interface {
	EvaluateAll(ctx context.Context) ([]models.User, error)
}

// PicnicReporter builds the coordinator report for a year.
type PicnicReporter interface {
	Report(ctx context.Context, year int) (*picnic.Report, error)
}

// Notifier delivers digests to the team channel.
type Notifier interface {
	SendPromotionDigest(ctx context.Context, promoted []mattermost.PromotedMember) error
	SendCoordinatorSummary(ctx context.Context, summary mattermost.CoordinatorSummary) error
}

// Service handles background job scheduling.
type Service struct {
	config     *config.Config
	membership MembershipEvaluator
	picnic     PicnicReporter
	notifier   Notifier
	log        *logger.Logger
	cron       *cron.Cron
}

// NewService creates a new scheduler service. notifier may be nil when
// Mattermost is disabled.
func NewService(
	cfg *config.Config,
	membership MembershipEvaluator,
	picnicReporter PicnicReporter,
	notifier Notifier,
	log *logger.Logger,
) *Service {
	return &Service{
		config:     cfg,
		membership: membership,
		picnic:     picnicReporter,
		notifier:   notifier,
		log:        log,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Scheduler.Enabled {
		s.log.Info().Msg("Scheduler is disabled in configuration")
		return nil
	}

	location, err := s.config.Scheduler.GetLocation()
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.config.Scheduler.Timezone, err)
	}

	s.cron = cron.New(cron.WithLocation(location))

	cronExpr, err := s.buildCronExpression()
	if err != nil {
		return fmt.Errorf("failed to build cron expression: %w", err)
	}

	_, err = s.cron.AddFunc(cronExpr, func() {
		s.runMembershipEvaluation(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to register membership evaluation job: %w", err)
	}

	// Register picnic summary job if configured
	if s.config.Scheduler.PicnicSummaryCron != "" && s.picnic != nil {
		_, err = s.cron.AddFunc(s.config.Scheduler.PicnicSummaryCron, func() {
			s.runPicnicSummary(context.Background())
		})
		if err != nil {
			return fmt.Errorf("failed to register picnic summary job: %w", err)
		}
		s.log.Info().
			Str("schedule", s.config.Scheduler.PicnicSummaryCron).
			Msg("Picnic summary job registered")
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("schedule", cronExpr).
		Str("timezone", s.config.Scheduler.Timezone).
		Str("time", s.config.Scheduler.Time).
		Bool("skip_weekends", s.config.Scheduler.SkipWeekends).
		Str("next_run", nextRun).
		Msg("Scheduler started successfully")

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Scheduler stopped")
	}
}

// buildCronExpression generates a cron expression from config.
func (s *Service) buildCronExpression() (string, error) {
	// Parse time string (format: "HH:MM")
	parts := strings.Split(s.config.Scheduler.Time, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time format %q, expected HH:MM", s.config.Scheduler.Time)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %q", parts[0])
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %q", parts[1])
	}

	// Format: "minute hour day month weekday"
	if s.config.Scheduler.SkipWeekends {
		return fmt.Sprintf("%d %d * * 1-5", minute, hour), nil
	}

	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// runMembershipEvaluation promotes eligible first-timers and announces them.
func (s *Service) runMembershipEvaluation(ctx context.Context) {
	start := time.Now()

	defer func() {
		prommetrics.ObserveSchedulerJobDuration(jobMembershipEvaluation, time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun(jobMembershipEvaluation)
	}()

	s.log.Info().Msg("Running membership evaluation job")

	promoted, err := s.membership.EvaluateAll(ctx)
	if err != nil {
		s.log.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Membership evaluation failed")
		prommetrics.RecordSchedulerJobRun(jobMembershipEvaluation, "error")
		prommetrics.RecordSchedulerNotificationFailed("query_error")
		return
	}

	if len(promoted) == 0 || s.notifier == nil {
		s.log.Debug().Int("promoted", len(promoted)).Msg("No promotion digest to send")
		prommetrics.RecordSchedulerJobRun(jobMembershipEvaluation, "success")
		return
	}

	sendStart := time.Now()
	if err := s.notifier.SendPromotionDigest(ctx, buildPromotedMembers(promoted)); err != nil {
		s.log.Error().
			Err(err).
			Dur("send_duration", time.Since(sendStart)).
			Msg("Failed to send promotion digest")
		prommetrics.RecordSchedulerJobRun(jobMembershipEvaluation, "error")
		prommetrics.RecordSchedulerNotificationFailed("mattermost_error")
		return
	}

	prommetrics.RecordSchedulerJobRun(jobMembershipEvaluation, "success")

	s.log.Info().
		Int("promoted", len(promoted)).
		Dur("total_duration", time.Since(start)).
		Msg("Membership evaluation job completed successfully")
}

// runPicnicSummary posts the coordinator list for the current year.
func (s *Service) runPicnicSummary(ctx context.Context) {
	start := time.Now()

	defer func() {
		prommetrics.ObserveSchedulerJobDuration(jobPicnicSummary, time.Since(start).Seconds())
		prommetrics.SetSchedulerLastRun(jobPicnicSummary)
	}()

	s.log.Info().Msg("Running picnic summary job")

	report, err := s.picnic.Report(ctx, 0)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to build picnic report")
		prommetrics.RecordSchedulerJobRun(jobPicnicSummary, "error")
		prommetrics.RecordSchedulerNotificationFailed("query_error")
		return
	}

	if s.notifier == nil {
		prommetrics.RecordSchedulerJobRun(jobPicnicSummary, "success")
		return
	}

	if err := s.notifier.SendCoordinatorSummary(ctx, buildCoordinatorSummary(report)); err != nil {
		s.log.Error().Err(err).Int("year", report.Year).Msg("Failed to send picnic summary")
		prommetrics.RecordSchedulerJobRun(jobPicnicSummary, "error")
		prommetrics.RecordSchedulerNotificationFailed("mattermost_error")
		return
	}

	prommetrics.RecordSchedulerJobRun(jobPicnicSummary, "success")

	s.log.Info().
		Int("year", report.Year).
		Int("registrations", report.Stats.TotalRegistrations).
		Dur("duration", time.Since(start)).
		Msg("Picnic summary job completed successfully")
}
