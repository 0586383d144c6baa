package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/sahayata/saathi/backend/internal/config"
	knowledgemodel "github.com/sahayata/saathi/backend/internal/model/knowledge"
)

// ErrUnavailable reports that the knowledge index could not be reached. The
// caller treats it like an empty result but may skip the augmentation tier
// entirely; it is never surfaced to the end user.
var ErrUnavailable = errors.New("knowledge index unavailable")

// Retriever is what the pipeline depends on; satisfied by Service and by
// test fakes.
type Retriever interface {
	Retrieve(ctx context.Context, q knowledgemodel.Query) ([]knowledgemodel.Snippet, error)
}

// Service queries the external knowledge index over HTTP. A circuit breaker
// turns a flapping index into an immediate ErrUnavailable instead of a
// timeout paid on every request.
type Service struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	cfg     config.KnowledgeConfig
	logger  zerolog.Logger
}

// NewService builds the retriever client. The service degrades to permanent
// ErrUnavailable when no index endpoint is configured.
func NewService(cfg config.KnowledgeConfig, logger zerolog.Logger) *Service {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "knowledge-index",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &Service{
		client:  client,
		breaker: breaker,
		cfg:     cfg,
		logger:  logger.With().Str("component", "knowledge").Logger(),
	}
}

type searchResponse struct {
	Results []knowledgemodel.Snippet `json:"results"`
}

// Retrieve returns ranked snippets clearing the query's minimum score.
// Filters exclude before ranking; "no match" is an empty list, not an error.
func (s *Service) Retrieve(ctx context.Context, q knowledgemodel.Query) ([]knowledgemodel.Snippet, error) {
	if !s.cfg.Enabled() {
		return nil, ErrUnavailable
	}

	maxResults := q.MaxResults
	if maxResults <= 0 || maxResults > s.cfg.MaxResults {
		maxResults = s.cfg.MaxResults
	}
	minScore := q.MinScore
	if minScore <= 0 {
		minScore = s.cfg.MinScore
	}

	raw, err := s.breaker.Execute(func() (any, error) {
		return s.search(ctx, q)
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("index lookup failed")
		return nil, ErrUnavailable
	}
	snippets := raw.([]knowledgemodel.Snippet)

	// Filter first: wrong-language or wrong-region content is excluded,
	// never merely down-ranked.
	filtered := snippets[:0]
	for _, snippet := range snippets {
		if q.Language != "" && snippet.Language != "" && snippet.Language != q.Language {
			continue
		}
		if q.Region != "" && snippet.Region != "" && snippet.Region != q.Region {
			continue
		}
		if len(q.Tags) > 0 && !hasAnyTag(snippet.Tags, q.Tags) {
			continue
		}
		if snippet.Score < minScore {
			continue
		}
		filtered = append(filtered, snippet)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Score > filtered[j].Score
	})
	if len(filtered) > maxResults {
		filtered = filtered[:maxResults]
	}
	return filtered, nil
}

func (s *Service) search(ctx context.Context, q knowledgemodel.Query) ([]knowledgemodel.Snippet, error) {
	var body searchResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"query":    q.Text,
			"language": q.Language,
			"region":   q.Region,
			"tags":     q.Tags,
		}).
		SetResult(&body).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("index request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("index returned %s", resp.Status())
	}
	return body.Results, nil
}

func hasAnyTag(snippetTags, wanted []string) bool {
	for _, tag := range wanted {
		for _, have := range snippetTags {
			if strings.EqualFold(have, tag) {
				return true
			}
		}
	}
	return false
}
