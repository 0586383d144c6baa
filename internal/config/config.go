package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the service reads at startup.
type Config struct {
	Server     ServerConfig
	AI         AIConfig
	Crisis     CrisisConfig
	Mood       MoodConfig
	Knowledge  KnowledgeConfig
	Escalation EscalationConfig
	Store      StoreConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	crisisCfg, err := loadCrisisConfig()
	if err != nil {
		return nil, err
	}

	moodCfg, err := loadMoodConfig()
	if err != nil {
		return nil, err
	}

	knowledgeCfg, err := loadKnowledgeConfig()
	if err != nil {
		return nil, err
	}

	escalationCfg, err := loadEscalationConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:     server,
		AI:         ai,
		Crisis:     crisisCfg,
		Mood:       moodCfg,
		Knowledge:  knowledgeCfg,
		Escalation: escalationCfg,
		Store:      loadStoreConfig(),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the generative model.
type AIConfig struct {
	APIKey          string
	AccessKey       string
	SecretKey       string
	Model           string
	BaseURL         string
	Region          string
	Temperature     *float64
	TopP            *float64
	MaxTokens       *int
	GenerateTimeout time.Duration
}

// Enabled reports whether the required credentials were provided.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel constructs a model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + ARK_MODEL or the AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	generateTimeout, err := parseDurationEnv("AI_GENERATE_TIMEOUT", 20*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:          strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:       strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:       strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:           strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:         getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:          getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:     temperature,
		TopP:            topP,
		MaxTokens:       maxTokens,
		GenerateTimeout: generateTimeout,
	}, nil
}

// CrisisConfig tunes risk scoring.
type CrisisConfig struct {
	LexiconPath       string
	ClassifierEnabled bool
	ClassifierTimeout time.Duration
	MediumThreshold   float64
	HighThreshold     float64
}

func loadCrisisConfig() (CrisisConfig, error) {
	classifierEnabled, err := parseBoolEnv("CRISIS_CLASSIFIER_ENABLED", true)
	if err != nil {
		return CrisisConfig{}, err
	}

	classifierTimeout, err := parseDurationEnv("CRISIS_CLASSIFIER_TIMEOUT", 5*time.Second)
	if err != nil {
		return CrisisConfig{}, err
	}

	medium, err := parseFloatEnv("CRISIS_MEDIUM_THRESHOLD", 0.4)
	if err != nil {
		return CrisisConfig{}, err
	}

	high, err := parseFloatEnv("CRISIS_HIGH_THRESHOLD", 0.8)
	if err != nil {
		return CrisisConfig{}, err
	}

	if medium >= high {
		return CrisisConfig{}, fmt.Errorf("CRISIS_MEDIUM_THRESHOLD %v must be below CRISIS_HIGH_THRESHOLD %v", medium, high)
	}

	return CrisisConfig{
		LexiconPath:       strings.TrimSpace(os.Getenv("LEXICON_PATH")),
		ClassifierEnabled: classifierEnabled,
		ClassifierTimeout: classifierTimeout,
		MediumThreshold:   medium,
		HighThreshold:     high,
	}, nil
}

// MoodConfig tunes mood inference.
type MoodConfig struct {
	ClassifierEnabled bool
	ClassifierTimeout time.Duration
	ConfidenceFloor   float64
}

func loadMoodConfig() (MoodConfig, error) {
	classifierEnabled, err := parseBoolEnv("MOOD_CLASSIFIER_ENABLED", true)
	if err != nil {
		return MoodConfig{}, err
	}

	classifierTimeout, err := parseDurationEnv("MOOD_CLASSIFIER_TIMEOUT", 5*time.Second)
	if err != nil {
		return MoodConfig{}, err
	}

	floor, err := parseFloatEnv("MOOD_CONFIDENCE_FLOOR", 0.6)
	if err != nil {
		return MoodConfig{}, err
	}

	return MoodConfig{
		ClassifierEnabled: classifierEnabled,
		ClassifierTimeout: classifierTimeout,
		ConfidenceFloor:   floor,
	}, nil
}

// KnowledgeConfig describes the knowledge index client.
type KnowledgeConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxResults int
	MinScore   float64
}

// Enabled reports whether an index endpoint was configured.
func (c KnowledgeConfig) Enabled() bool {
	return c.BaseURL != ""
}

func loadKnowledgeConfig() (KnowledgeConfig, error) {
	timeout, err := parseDurationEnv("KNOWLEDGE_TIMEOUT", 3*time.Second)
	if err != nil {
		return KnowledgeConfig{}, err
	}

	maxResults, err := parseIntEnv("KNOWLEDGE_MAX_RESULTS", 3)
	if err != nil {
		return KnowledgeConfig{}, err
	}

	minScore, err := parseFloatEnv("KNOWLEDGE_MIN_SCORE", 0.5)
	if err != nil {
		return KnowledgeConfig{}, err
	}

	return KnowledgeConfig{
		BaseURL:    strings.TrimSpace(os.Getenv("KNOWLEDGE_BASE_URL")),
		APIKey:     strings.TrimSpace(os.Getenv("KNOWLEDGE_API_KEY")),
		Timeout:    timeout,
		MaxResults: maxResults,
		MinScore:   minScore,
	}, nil
}

// EscalationConfig tunes safety escalations.
type EscalationConfig struct {
	CooldownWindow time.Duration
}

func loadEscalationConfig() (EscalationConfig, error) {
	cooldown, err := parseDurationEnv("ESCALATION_COOLDOWN", 5*time.Minute)
	if err != nil {
		return EscalationConfig{}, err
	}
	return EscalationConfig{CooldownWindow: cooldown}, nil
}

// StoreConfig selects the persistence backends. Empty values fall back to the
// in-memory implementations.
type StoreConfig struct {
	DatabasePath string
	RedisURL     string
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		DatabasePath: strings.TrimSpace(os.Getenv("DATABASE_PATH")),
		RedisURL:     strings.TrimSpace(os.Getenv("REDIS_URL")),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
