package privacy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sahayata/saathi/backend/internal/metrics"
	privacymodel "github.com/sahayata/saathi/backend/internal/model/privacy"
	"github.com/sahayata/saathi/backend/internal/store"
)

// ErrAccessDenied reports that the requester lacks permission to read the
// subject's data.
var ErrAccessDenied = errors.New("access denied")

// Resources gated by the privacy flags.
const (
	ResourceMood         = "mood"
	ResourceConversation = "conversation"
)

// Service consults PrivacyFlags on every read path that exposes one user's
// data to another party, and writes the audit trail synchronously with the
// decision.
type Service struct {
	data   store.DataStore
	logger zerolog.Logger
}

// NewService wires the privacy gate.
func NewService(data store.DataStore, logger zerolog.Logger) *Service {
	return &Service{data: data, logger: logger.With().Str("component", "privacy").Logger()}
}

// Authorize permits or denies actorID reading subjectID's resource.
// Self-access is always permitted regardless of sharing flags. Every
// decision is recorded in the access log before it is returned.
func (s *Service) Authorize(ctx context.Context, actorID, subjectID, resource, action string) error {
	outcome := privacymodel.OutcomePermitted
	var decision error

	switch {
	case actorID != "" && actorID == subjectID:
		// self-access
	default:
		flags, err := s.data.GetPrivacyFlags(ctx, subjectID)
		if err != nil {
			return fmt.Errorf("load privacy flags: %w", err)
		}
		if !allowed(flags, resource) {
			outcome = privacymodel.OutcomeDenied
			decision = ErrAccessDenied
		}
	}

	entry := privacymodel.AccessLogEntry{
		ActorID:   actorID,
		SubjectID: subjectID,
		Resource:  resource,
		Action:    action,
		Outcome:   outcome,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.data.AppendAccessLog(ctx, entry); err != nil {
		// The audit write is part of the contract; a gated read without a
		// trail must not proceed.
		return fmt.Errorf("append access log: %w", err)
	}

	if decision != nil {
		s.logger.Info().
			Str("actor", actorID).
			Str("subject", subjectID).
			Str("resource", resource).
			Msg("access denied")
		metrics.AccessDenials.WithLabelValues(resource).Inc()
	}
	return decision
}

// SetFlags stores a user's sharing switches.
func (s *Service) SetFlags(ctx context.Context, flags privacymodel.Flags) error {
	return s.data.SetPrivacyFlags(ctx, flags)
}

// Flags loads a user's sharing switches, defaulting to all-true.
func (s *Service) Flags(ctx context.Context, userID string) (privacymodel.Flags, error) {
	return s.data.GetPrivacyFlags(ctx, userID)
}

func allowed(flags privacymodel.Flags, resource string) bool {
	switch resource {
	case ResourceMood:
		return flags.ShareMood
	case ResourceConversation:
		return flags.ShareConversation
	default:
		return false
	}
}
