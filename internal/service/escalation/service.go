package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sahayata/saathi/backend/internal/metrics"
	crisismodel "github.com/sahayata/saathi/backend/internal/model/crisis"
	escalationmodel "github.com/sahayata/saathi/backend/internal/model/escalation"
	"github.com/sahayata/saathi/backend/internal/store"
)

// Service decides, records, and deduplicates safety escalations. The
// cooldown check-and-mark is atomic, so two concurrent high-risk detections
// for one user produce exactly one record.
type Service struct {
	data      store.DataStore
	cooldown  store.CooldownStore
	directory Directory
	window    time.Duration
	logger    zerolog.Logger
}

// NewService wires the coordinator.
func NewService(data store.DataStore, cooldown store.CooldownStore, directory Directory, window time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		data:      data,
		cooldown:  cooldown,
		directory: directory,
		window:    window,
		logger:    logger.With().Str("component", "escalation").Logger(),
	}
}

// MaybeEscalate creates an escalation record for a high-risk assessment,
// unless the user's cooldown window is still open. A nil record with a nil
// error means no escalation was warranted, it was deduplicated, or record
// persistence failed after the cooldown was marked; the assessment itself is
// persisted by the caller either way. The only error returned is a failed
// cooldown check-and-mark, a defect in the cooldown store rather than an
// expected runtime condition.
func (s *Service) MaybeEscalate(ctx context.Context, assessment crisismodel.Assessment) (*escalationmodel.Record, error) {
	if assessment.Level != crisismodel.LevelHigh {
		return nil, nil
	}
	if assessment.UserID == "" {
		// Anonymous subjects have no durable identity to notify about.
		return nil, nil
	}

	won, err := s.cooldown.TryAcquire(ctx, assessment.UserID, s.window)
	if err != nil {
		return nil, fmt.Errorf("cooldown check-and-mark: %w", err)
	}
	if !won {
		s.logger.Info().Str("user", assessment.UserID).Msg("escalation suppressed by cooldown")
		metrics.EscalationsDeduped.Inc()
		return nil, nil
	}

	institutionID, _ := s.directory.InstitutionFor(assessment.UserID)

	severity := escalationmodel.SeverityHigh
	if assessment.Score >= 0.9 {
		severity = escalationmodel.SeverityCritical
	}

	record, err := s.data.CreateEscalation(ctx, escalationmodel.Record{
		InstitutionID: institutionID,
		UserID:        assessment.UserID,
		Severity:      severity,
		RiskScore:     assessment.Score,
		RiskLevel:     assessment.Level,
		Reason:        reasonFor(assessment),
		Status:        escalationmodel.StatusPending,
	})
	if err != nil {
		// The record is lost but the caller's reply must survive. The
		// cooldown stays marked, so the suppression is logged loudly.
		s.logger.Error().Err(err).
			Str("user", assessment.UserID).
			Str("institution", institutionID).
			Float64("score", assessment.Score).
			Msg("escalation record persistence failed, detection suppressed for this window")
		return nil, nil
	}

	s.logger.Warn().
		Str("user", assessment.UserID).
		Str("institution", institutionID).
		Float64("score", assessment.Score).
		Msg("escalation created")
	metrics.EscalationsCreated.Inc()
	return &record, nil
}

func reasonFor(assessment crisismodel.Assessment) string {
	if len(assessment.MatchedPatterns) > 0 {
		return fmt.Sprintf("high crisis score %.2f; matched patterns: %v", assessment.Score, assessment.MatchedPatterns)
	}
	return fmt.Sprintf("high crisis score %.2f from classifier signal", assessment.Score)
}
