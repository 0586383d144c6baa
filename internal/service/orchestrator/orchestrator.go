package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sahayata/saathi/backend/internal/metrics"
	"github.com/sahayata/saathi/backend/internal/model/chat"
	knowledgemodel "github.com/sahayata/saathi/backend/internal/model/knowledge"
)

// Tier names one stage of the generation state machine.
type Tier string

const (
	TierAugmented Tier = "augmented"
	TierBasic     Tier = "basic"
	TierSafe      Tier = "safe"
)

// Generator is the external generative service. Implemented by ai.Service.
type Generator interface {
	Generate(ctx context.Context, history []chat.Message, userMessage, language string) (string, error)
	GenerateGrounded(ctx context.Context, history []chat.Message, userMessage, language string, snippets []knowledgemodel.Snippet) (string, error)
}

// Result is the orchestrator's output contract.
type Result struct {
	ReplyText    string   `json:"replyText"`
	ContextUsed  bool     `json:"contextUsed"`
	CitedSources []string `json:"citedSources"`
	Tier         Tier     `json:"-"`
}

// Orchestrator drives the tiered generation state machine. Transitions occur
// only on failure of the current tier; each tier runs at most once, so
// degradation is monotonic. The safe tier is local and cannot fail.
type Orchestrator struct {
	generator       Generator
	generateTimeout time.Duration
	logger          zerolog.Logger
}

// New builds the orchestrator. generator may be nil (no model configured);
// every request then lands in the safe tier.
func New(generator Generator, generateTimeout time.Duration, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		generator:       generator,
		generateTimeout: generateTimeout,
		logger:          logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Respond produces the reply for one utterance. lookup is the already-run
// knowledge retrieval outcome; the augmented tier is skipped when it yielded
// nothing.
func (o *Orchestrator) Respond(ctx context.Context, language string, history []chat.Message, userMessage string, lookup knowledgemodel.Lookup) Result {
	if o.generator == nil {
		o.logger.Info().Str("tier", string(TierSafe)).Msg("no generator configured")
		return o.safeReply(language)
	}

	if len(lookup.Snippets) > 0 {
		reply, err := o.generateGrounded(ctx, history, userMessage, language, lookup.Snippets)
		if err == nil {
			sources := make([]string, 0, len(lookup.Snippets))
			for _, snippet := range lookup.Snippets {
				sources = append(sources, snippet.SourceID)
			}
			return Result{ReplyText: reply, ContextUsed: true, CitedSources: sources, Tier: TierAugmented}
		}
		o.logger.Warn().Err(err).
			Str("from", string(TierAugmented)).Str("to", string(TierBasic)).
			Msg("tier failed")
		metrics.TierFallbacks.WithLabelValues(string(TierAugmented), string(TierBasic)).Inc()
	} else if lookup.Unavailable {
		o.logger.Info().Str("tier", string(TierAugmented)).Msg("knowledge index unavailable, skipping augmentation")
	}

	reply, err := o.generate(ctx, history, userMessage, language)
	if err == nil {
		return Result{ReplyText: reply, ContextUsed: false, CitedSources: []string{}, Tier: TierBasic}
	}
	o.logger.Warn().Err(err).
		Str("from", string(TierBasic)).Str("to", string(TierSafe)).
		Msg("tier failed")
	metrics.TierFallbacks.WithLabelValues(string(TierBasic), string(TierSafe)).Inc()

	return o.safeReply(language)
}

func (o *Orchestrator) generateGrounded(ctx context.Context, history []chat.Message, userMessage, language string, snippets []knowledgemodel.Snippet) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.generateTimeout)
	defer cancel()
	return o.generator.GenerateGrounded(callCtx, history, userMessage, language, snippets)
}

func (o *Orchestrator) generate(ctx context.Context, history []chat.Message, userMessage, language string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.generateTimeout)
	defer cancel()
	return o.generator.Generate(callCtx, history, userMessage, language)
}

// safeReply is the state machine's terminal guarantee: a fixed, pre-authored
// message with the helpline contact, selected by detected language. No
// external dependency, so it cannot fail.
func (o *Orchestrator) safeReply(language string) Result {
	reply, ok := safeReplies[language]
	if !ok {
		reply = safeReplies["en"]
	}
	return Result{ReplyText: reply, ContextUsed: false, CitedSources: []string{}, Tier: TierSafe}
}

var safeReplies = map[string]string{
	"en": "I'm here with you, and what you're feeling matters. I'm having trouble responding right now, but you don't have to face this alone. You can reach the KIRAN helpline any time at 1800-599-0019, or talk to someone you trust.",
	"hi": "Main aapke saath hoon, aur aapki baat mayne rakhti hai. Abhi mujhe jawab dene mein dikkat ho rahi hai, lekin aap akele nahi hain. Aap kabhi bhi KIRAN helpline 1800-599-0019 par baat kar sakte hain, ya kisi apne se baat kijiye.",
	"ur": "Main aap ke saath hoon. Abhi jawab dene mein mushkil ho rahi hai, lekin aap akele nahi hain. KIRAN helpline 1800-599-0019 par kisi bhi waqt raabta karein, ya kisi qareebi se baat karein.",
}
