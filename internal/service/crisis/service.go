package crisis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/sahayata/saathi/backend/internal/config"
	"github.com/sahayata/saathi/backend/internal/lexicon"
	crisismodel "github.com/sahayata/saathi/backend/internal/model/crisis"
)

// classifyFunc is the external classifier signal: a risk score in [0,1].
type classifyFunc func(ctx context.Context, utterance, language string) (float64, error)

// Service scores inbound utterances for crisis risk. It combines the
// deterministic lexicon signal with an optional LLM classifier; the
// combination is the maximum of the two, never an average, so one
// unambiguous high-risk phrase cannot be diluted by a disagreeing
// classifier. Classifier failure degrades to lexicon-only and never
// surfaces an error.
type Service struct {
	lex        *lexicon.Lexicon
	classifier classifyFunc
	cfg        config.CrisisConfig
	logger     zerolog.Logger
}

// NewService builds the scorer. chatModel may be nil; the classifier path is
// then disabled and assessment is lexicon-only.
func NewService(ctx context.Context, lex *lexicon.Lexicon, chatModel model.ChatModel, cfg config.CrisisConfig, logger zerolog.Logger) (*Service, error) {
	svc := &Service{
		lex:    lex,
		cfg:    cfg,
		logger: logger.With().Str("component", "crisis").Logger(),
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
		return nil, fmt.Errorf("compile crisis classifier chain: %w", err)
	}
	svc.classifier = chainClassifier(runnable)
	return svc, nil
}

// Assess scores one utterance. Pure apart from the optional classifier call;
// persisting the result is the caller's responsibility.
func (s *Service) Assess(ctx context.Context, userID, utterance, language string) crisismodel.Assessment {
	matched := s.lex.Match(utterance, language, lexicon.CategoryRisk)

	score := lexiconScore(matched)
	patterns := make([]string, 0, len(matched))
	for _, entry := range matched {
		patterns = append(patterns, entry.Phrase)
	}

	if classifierScore, ok := s.classifierScore(ctx, utterance, language); ok && classifierScore > score {
		score = classifierScore
	}

	return crisismodel.Assessment{
		UserID:          userID,
		Score:           score,
		Level:           crisismodel.LevelFor(score, s.cfg.MediumThreshold, s.cfg.HighThreshold),
		MatchedPatterns: patterns,
		CreatedAt:       time.Now().UTC(),
	}
}

// lexiconScore takes the heaviest matched entry and bumps it slightly for
// each additional distinct match, capped at 1.0. Several independent risk
// phrases must not score lower than one, but repeats of mild phrases must
// not saturate the scale either.
func lexiconScore(matched []lexicon.Entry) float64 {
	if len(matched) == 0 {
		return 0
	}

	max := 0.0
	for _, entry := range matched {
		if entry.Weight > max {
			max = entry.Weight
		}
	}

	score := max + 0.05*float64(len(matched)-1)
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func (s *Service) classifierScore(ctx context.Context, utterance, language string) (float64, bool) {
	if s.classifier == nil {
		return 0, false
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ClassifierTimeout)
	defer cancel()

	score, err := s.classifier(callCtx, utterance, language)
	if err != nil {
		s.logger.Warn().Err(err).Msg("classifier failed, lexicon-only assessment")
		return 0, false
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, true
}

// chainClassifier adapts a compiled eino chain to a classifyFunc.
func chainClassifier(runnable compose.Runnable[map[string]any, *schema.Message]) classifyFunc {
	return func(ctx context.Context, utterance, language string) (float64, error) {
		msg, err := runnable.Invoke(ctx, map[string]any{
			"utterance": strings.TrimSpace(utterance),
			"language":  language,
		})
		if err != nil {
			return 0, err
		}
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			return 0, fmt.Errorf("empty classifier reply")
		}

		payload, err := parseClassifierOutput(msg.Content)
		if err != nil {
			return 0, err
		}
		return payload.Score, nil
	}
}

type classifierPayload struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// parseClassifierOutput extracts the JSON object from the model reply.
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

const classifierSystemPrompt = `You are a clinical triage assistant. Read one user utterance and rate the risk that the user intends self-harm or is in acute crisis.
Return only a JSON object: {"score": <0.0-1.0>, "reason": "<one short sentence>"}. No extra text.`

const classifierUserPrompt = `Utterance (language hint: {language}):
{utterance}

Return the JSON now.`
