package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sahayata/saathi/backend/internal/metrics"
	chatmodel "github.com/sahayata/saathi/backend/internal/model/chat"
	crisismodel "github.com/sahayata/saathi/backend/internal/model/crisis"
	escalationmodel "github.com/sahayata/saathi/backend/internal/model/escalation"
	knowledgemodel "github.com/sahayata/saathi/backend/internal/model/knowledge"
	moodmodel "github.com/sahayata/saathi/backend/internal/model/mood"
	chatservice "github.com/sahayata/saathi/backend/internal/service/chat"
	"github.com/sahayata/saathi/backend/internal/service/knowledge"
	"github.com/sahayata/saathi/backend/internal/service/orchestrator"
	"github.com/sahayata/saathi/backend/internal/store"
)

// ErrTextRequired rejects chat requests without an utterance.
var ErrTextRequired = errors.New("text is required")

// CrisisScorer assesses one utterance; it never fails.
type CrisisScorer interface {
	Assess(ctx context.Context, userID, utterance, language string) crisismodel.Assessment
}

// MoodInferencer classifies one utterance; it never fails.
type MoodInferencer interface {
	Infer(ctx context.Context, utterance, language string) moodmodel.Inference
	ConfidenceFloor() float64
}

// Responder is the tiered generation state machine.
type Responder interface {
	Respond(ctx context.Context, language string, history []chatmodel.Message, userMessage string, lookup knowledgemodel.Lookup) orchestrator.Result
}

// Escalator decides and records safety escalations.
type Escalator interface {
	MaybeEscalate(ctx context.Context, assessment crisismodel.Assessment) (*escalationmodel.Record, error)
}

// ChatRequest is one inbound utterance. An empty UserID marks an anonymous
// requester.
type ChatRequest struct {
	UserID     string
	Text       string
	Language   string
	Region     string
	MaxResults int
}

// ChatResponse is the single response object assembled per request.
type ChatResponse struct {
	ConversationID string               `json:"conversationId"`
	ReplyText      string               `json:"replyText"`
	ContextUsed    bool                 `json:"contextUsed"`
	CitedSources   []string             `json:"citedSources"`
	MoodInference  *moodmodel.Inference `json:"moodInference,omitempty"`
}

// Controller sequences one request/response cycle: append the user message,
// run crisis scoring, mood inference, and knowledge retrieval concurrently,
// generate the reply, coordinate escalation, and append the assistant
// message. A failure in any optional stage never prevents a reply.
type Controller struct {
	conversations *chatservice.Service
	crisis        CrisisScorer
	mood          MoodInferencer
	retriever     knowledge.Retriever
	responder     Responder
	escalations   Escalator
	data          store.DataStore
	logger        zerolog.Logger
}

// NewController wires the pipeline.
func NewController(
	conversations *chatservice.Service,
	crisis CrisisScorer,
	mood MoodInferencer,
	retriever knowledge.Retriever,
	responder Responder,
	escalations Escalator,
	data store.DataStore,
	logger zerolog.Logger,
) *Controller {
	return &Controller{
		conversations: conversations,
		crisis:        crisis,
		mood:          mood,
		retriever:     retriever,
		responder:     responder,
		escalations:   escalations,
		data:          data,
		logger:        logger.With().Str("component", "pipeline").Logger(),
	}
}

// HandleMessage runs the full pipeline for one utterance.
func (c *Controller) HandleMessage(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return ChatResponse{}, ErrTextRequired
	}
	metrics.ChatRequests.Inc()

	authenticated := req.UserID != ""
	ownerID := req.UserID
	if ownerID == "" {
		// Anonymous requesters get a throwaway conversation identity.
		ownerID = "anon-" + uuid.NewString()
	}

	conv, err := c.conversations.EnsureConversation(ctx, ownerID)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("ensure conversation: %w", err)
	}

	userMsg, err := c.conversations.Append(ctx, chatmodel.Message{
		ConversationID: conv.ID,
		Sender:         ownerID,
		Content:        text,
		Metadata:       messageMetadata(req),
	})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("append user message: %w", err)
	}

	history, err := c.conversations.Transcript(ctx, conv.ID, 0)
	if err != nil {
		c.logger.Warn().Err(err).Msg("transcript load failed, generating without history")
		history = nil
	}
	// The just-appended utterance goes to the model as the query, not as
	// part of the history.
	if n := len(history); n > 0 && history[n-1].ID == userMsg.ID {
		history = history[:n-1]
	}

	// Crisis scoring, mood inference, and knowledge retrieval have no data
	// dependencies on each other; run them concurrently. None of them can
	// fail the request.
	var (
		assessment crisismodel.Assessment
		inference  moodmodel.Inference
		lookup     knowledgemodel.Lookup
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		assessment = c.crisis.Assess(gctx, req.UserID, text, req.Language)
		return nil
	})
	g.Go(func() error {
		inference = c.mood.Infer(gctx, text, req.Language)
		return nil
	})
	g.Go(func() error {
		snippets, err := c.retriever.Retrieve(gctx, knowledgemodel.Query{
			Text:       text,
			Language:   req.Language,
			Region:     req.Region,
			MaxResults: req.MaxResults,
		})
		if err != nil {
			lookup = knowledgemodel.Lookup{Unavailable: true}
			return nil
		}
		lookup = knowledgemodel.Lookup{Snippets: snippets}
		return nil
	})
	_ = g.Wait()

	metrics.CrisisDetections.WithLabelValues(string(assessment.Level)).Inc()

	result := c.responder.Respond(ctx, req.Language, history, text, lookup)
	metrics.RepliesByTier.WithLabelValues(string(result.Tier)).Inc()

	if err := c.data.SaveAssessment(ctx, assessment); err != nil {
		// Audit persistence must not cost the user their reply.
		c.logger.Error().Err(err).Msg("assessment persistence failed")
	}

	if _, err := c.escalations.MaybeEscalate(ctx, assessment); err != nil {
		// Only the cooldown atomic operation can fail here; that is a
		// defect, not a runtime condition.
		return ChatResponse{}, fmt.Errorf("escalation coordination: %w", err)
	}

	applied := c.applyMood(ctx, authenticated, req.UserID, text, &inference)

	assistantMsg := chatmodel.Message{
		ConversationID: conv.ID,
		Sender:         chatmodel.SenderAssistant,
		Content:        result.ReplyText,
		Metadata: map[string]string{
			"tier":        string(result.Tier),
			"contextUsed": fmt.Sprintf("%t", result.ContextUsed),
		},
	}
	if applied {
		assistantMsg.MoodLabel = string(inference.Label)
	}
	if _, err := c.conversations.Append(ctx, assistantMsg); err != nil {
		c.logger.Error().Err(err).Msg("assistant message persistence failed")
	}

	response := ChatResponse{
		ConversationID: conv.ID,
		ReplyText:      result.ReplyText,
		ContextUsed:    result.ContextUsed,
		CitedSources:   result.CitedSources,
	}
	if authenticated {
		response.MoodInference = &inference
	}
	return response, nil
}

// DetectCrisis runs assessment and escalation for one utterance without
// generating a reply; the crisis/detect endpoint uses it.
func (c *Controller) DetectCrisis(ctx context.Context, userID, text, language string) (crisismodel.Assessment, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return crisismodel.Assessment{}, ErrTextRequired
	}

	assessment := c.crisis.Assess(ctx, userID, trimmed, language)
	metrics.CrisisDetections.WithLabelValues(string(assessment.Level)).Inc()

	if err := c.data.SaveAssessment(ctx, assessment); err != nil {
		c.logger.Error().Err(err).Msg("assessment persistence failed")
	}
	if _, err := c.escalations.MaybeEscalate(ctx, assessment); err != nil {
		return crisismodel.Assessment{}, fmt.Errorf("escalation coordination: %w", err)
	}
	return assessment, nil
}

// InferMood runs mood inference for one utterance and applies it as a mood
// update when allowed; the mood/infer endpoint uses it.
func (c *Controller) InferMood(ctx context.Context, userID, text, language string, autoUpdate bool) (moodmodel.Inference, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return moodmodel.Inference{}, ErrTextRequired
	}

	inference := c.mood.Infer(ctx, trimmed, language)
	if autoUpdate {
		c.applyMood(ctx, userID != "", userID, trimmed, &inference)
	}
	return inference, nil
}

// applyMood persists the inference as a MoodEntry when the requester is
// authenticated, has mood sharing enabled, and the confidence clears the
// floor. Low-confidence results are returned for display but never
// auto-applied.
func (c *Controller) applyMood(ctx context.Context, authenticated bool, userID, text string, inference *moodmodel.Inference) bool {
	if !authenticated || inference.Confidence < c.mood.ConfidenceFloor() {
		return false
	}

	flags, err := c.data.GetPrivacyFlags(ctx, userID)
	if err != nil {
		c.logger.Warn().Err(err).Msg("privacy flags load failed, skipping mood update")
		return false
	}
	if !flags.ShareMood {
		return false
	}

	entry := moodmodel.Entry{
		UserID:     userID,
		Label:      inference.Label,
		Intensity:  inference.Intensity,
		Confidence: inference.Confidence,
		Note:       truncate(text, 140),
		CreatedAt:  time.Now().UTC(),
	}
	if err := c.data.SaveMoodEntry(ctx, entry); err != nil {
		c.logger.Warn().Err(err).Msg("mood entry persistence failed")
		return false
	}
	inference.Applied = true
	return true
}

func messageMetadata(req ChatRequest) map[string]string {
	metadata := map[string]string{"channel": "chat"}
	if req.Language != "" {
		metadata["language"] = req.Language
	}
	if req.Region != "" {
		metadata["region"] = req.Region
	}
	return metadata
}

// truncate cuts on a rune boundary so multi-byte text stays valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := 0
	for i := range s {
		if i > max {
			break
		}
		cut = i
	}
	return s[:cut]
}
