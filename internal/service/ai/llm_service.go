package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/sahayata/saathi/backend/internal/config"
	"github.com/sahayata/saathi/backend/internal/model/chat"
	"github.com/sahayata/saathi/backend/internal/model/knowledge"
)

const historyLimit = 10

const companionSystemPrompt = `You are Saathi, a warm, multilingual mental-wellness companion.
Listen first, validate feelings, and answer briefly in the user's language.
You are not a medical professional and must not diagnose or prescribe.
If the user appears to be in danger, gently encourage them to reach a helpline or someone they trust.`

// Service wraps the generative chat model behind prompt-template chains.
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
	logger    zerolog.Logger
}

// NewService builds the generation chain on top of the configured model.
func NewService(ctx context.Context, cfg config.AIConfig, logger zerolog.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		chain:     runnable,
		logger:    logger.With().Str("component", "ai").Logger(),
	}, nil
}

// GetChatModel exposes the underlying model so the crisis and mood
// classifiers can reuse the same connection.
func (s *Service) GetChatModel() model.ChatModel {
	return s.chatModel
}

// Generate produces a reply from the utterance and recent context only.
func (s *Service) Generate(ctx context.Context, history []chat.Message, userMessage, language string) (string, error) {
	return s.invoke(ctx, buildSystemPrompt(language, nil), history, userMessage)
}

// GenerateGrounded produces a reply grounded in the retrieved snippets.
func (s *Service) GenerateGrounded(ctx context.Context, history []chat.Message, userMessage, language string, snippets []knowledge.Snippet) (string, error) {
	return s.invoke(ctx, buildSystemPrompt(language, snippets), history, userMessage)
}

func (s *Service) invoke(ctx context.Context, system string, history []chat.Message, userMessage string) (string, error) {
	input := map[string]any{
		"system":  system,
		"history": buildHistoryMessages(history),
		"query":   userMessage,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("run generation chain: %w", err)
	}
	reply := strings.TrimSpace(response.Content)
	if reply == "" {
		return "", fmt.Errorf("model returned empty reply")
	}

	s.logger.Debug().Int("length", len(reply)).Msg("generated reply")
	return reply, nil
}

func buildSystemPrompt(language string, snippets []knowledge.Snippet) string {
	var builder strings.Builder
	builder.WriteString(companionSystemPrompt)
	if language != "" {
		builder.WriteString(fmt.Sprintf("\nThe user's detected language is %q; reply in it.", language))
	}

	if len(snippets) > 0 {
		builder.WriteString("\n\nGround your reply in the following verified knowledge. Do not invent facts beyond it:")
		for _, snippet := range snippets {
			builder.WriteString(fmt.Sprintf("\n- [%s] %s", snippet.SourceID, strings.TrimSpace(snippet.Content)))
		}
	}
	return builder.String()
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Sender {
		case chat.SenderAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		default:
			history = append(history, schema.UserMessage(msg.Content))
		}
	}
	return history
}
