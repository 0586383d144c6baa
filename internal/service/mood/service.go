package mood

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	analysis "github.com/sahayata/saathi/backend/internal/analysis/mood"
	"github.com/sahayata/saathi/backend/internal/config"
	"github.com/sahayata/saathi/backend/internal/lexicon"
	moodmodel "github.com/sahayata/saathi/backend/internal/model/mood"
)

type classifyFunc func(ctx context.Context, utterance, language string) (*classifierPayload, error)

// Service infers the emotional content of an utterance. The LLM classifier is
// the primary path; the lexicon keyword analyzer covers classifier outages.
// Results below the confidence floor are still returned for display but must
// not be auto-applied as a mood update.
type Service struct {
	lex        *lexicon.Lexicon
	classifier classifyFunc
	fallback   func(lex *lexicon.Lexicon, utterance, language string) analysis.Decision
	cfg        config.MoodConfig
	logger     zerolog.Logger
}

// NewService builds the inferencer. chatModel may be nil; inference then uses
// the keyword analyzer only.
func NewService(ctx context.Context, lex *lexicon.Lexicon, chatModel model.ChatModel, cfg config.MoodConfig, logger zerolog.Logger) (*Service, error) {
	svc := &Service{
		lex:      lex,
		fallback: analysis.Analyze,
		cfg:      cfg,
		logger:   logger.With().Str("component", "mood").Logger(),
	}

	if !cfg.ClassifierEnabled || chatModel == nil {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(classifierSystemPrompt),
		schema.UserMessage(classifierUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile mood classifier chain: %w", err)
	}
	svc.classifier = chainClassifier(runnable)
	return svc, nil
}

// ConfidenceFloor is the threshold below which inferences are display-only.
func (s *Service) ConfidenceFloor() float64 {
	return s.cfg.ConfidenceFloor
}

// Infer classifies one utterance. Applied is always false here; whether the
// inference becomes a persisted entry is the caller's decision.
func (s *Service) Infer(ctx context.Context, utterance, language string) moodmodel.Inference {
	if s.classifier != nil {
		if inference, ok := s.classify(ctx, utterance, language); ok {
			return inference
		}
	}
	return s.fallbackInference(utterance, language)
}

func (s *Service) classify(ctx context.Context, utterance, language string) (moodmodel.Inference, bool) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ClassifierTimeout)
	defer cancel()

	payload, err := s.classifier(callCtx, utterance, language)
	if err != nil {
		s.logger.Warn().Err(err).Msg("classifier failed, keyword fallback")
		return moodmodel.Inference{}, false
	}

	label, ok := moodmodel.ParseLabel(strings.ToLower(strings.TrimSpace(payload.Label)))
	if !ok {
		s.logger.Warn().Str("label", payload.Label).Msg("unknown classifier label, keyword fallback")
		return moodmodel.Inference{}, false
	}

	// A classifier that only saw one side of a mixed utterance is overruled
	// by the deterministic keyword evidence.
	if fallback := s.fallback(s.lex, utterance, language); fallback.Label == moodmodel.Mixed && label != moodmodel.Mixed {
		label = moodmodel.Mixed
	}

	intensity := payload.Intensity
	if intensity < 1 {
		intensity = 1
	}
	if intensity > 10 {
		intensity = 10
	}

	confidence := payload.Confidence
	if confidence <= 0 {
		confidence = 0.6
	}
	if confidence > 1 {
		confidence = 1
	}

	return moodmodel.Inference{Label: label, Intensity: intensity, Confidence: confidence}, true
}

func (s *Service) fallbackInference(utterance, language string) moodmodel.Inference {
	decision := s.fallback(s.lex, utterance, language)
	return moodmodel.Inference{
		Label:      decision.Label,
		Intensity:  decision.Intensity,
		Confidence: decision.Confidence,
	}
}

type classifierPayload struct {
	Label      string  `json:"label"`
	Intensity  int     `json:"intensity"`
	Confidence float64 `json:"confidence"`
}

func chainClassifier(runnable compose.Runnable[map[string]any, *schema.Message]) classifyFunc {
	return func(ctx context.Context, utterance, language string) (*classifierPayload, error) {
		msg, err := runnable.Invoke(ctx, map[string]any{
			"utterance": strings.TrimSpace(utterance),
			"language":  language,
		})
		if err != nil {
			return nil, err
		}
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			return nil, fmt.Errorf("empty classifier reply")
		}
		return parseClassifierOutput(msg.Content)
	}
}

func parseClassifierOutput(content string) (*classifierPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &classifierPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

const classifierSystemPrompt = `You classify the emotional content of one user utterance.
Return only a JSON object: {"label": "<neutral|happy|sad|anxious|angry|calm|mixed>", "intensity": <1-10>, "confidence": <0.0-1.0>}.
Use "mixed" when the utterance carries both positive and negative feeling. No extra text.`

const classifierUserPrompt = `Utterance (language hint: {language}):
{utterance}

Return the JSON now.`
