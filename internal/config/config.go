package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.tgtriage/config.toml.
type Config struct {
	DefaultSession string          `toml:"default_session"`
	Telegram       TelegramConfig  `toml:"telegram"`
	AI             AIConfig        `toml:"ai"`
	RateLimit      RateLimitConfig `toml:"rate_limit"`
	Cache          CacheConfig     `toml:"cache"`
	Fetch          FetchConfig     `toml:"fetch"`
	FollowUp       FollowUpConfig  `toml:"follow_up"`
	Semantic       SemanticConfig  `toml:"semantic"`
	Retry          RetryConfig     `toml:"retry"`
	Daemon         DaemonConfig    `toml:"daemon"`
}

// TelegramConfig holds platform credentials.
type TelegramConfig struct {
	APIID          int    `toml:"api_id"`
	APIHash        string `toml:"api_hash"`
	BotToken       string `toml:"bot_token"`
	OwnerUserID    int64  `toml:"owner_user_id"`
	PollTimeoutSec int    `toml:"poll_timeout_seconds"`
	CallTimeoutSec int    `toml:"call_timeout_seconds"`
}

// AIConfig selects and configures the AI provider.
type AIConfig struct {
	Provider          string `toml:"provider"` // "claude", "openai" or "none"
	APIKey            string `toml:"api_key"`
	Model             string `toml:"model"`
	FollowUpModel     string `toml:"follow_up_model"`
	BaseURL           string `toml:"base_url"`
	MaxResponseTokens int    `toml:"max_response_tokens"`
	RequestTimeoutSec int    `toml:"request_timeout_seconds"`
}

type RateLimitConfig struct {
	MaxTokens  int     `toml:"max_tokens"`
	RefillRate float64 `toml:"refill_rate"`
}

type CacheConfig struct {
	MaxUsers int `toml:"max_users"`
	MaxChats int `toml:"max_chats"`
}

type FetchConfig struct {
	ChatListLimit       int `toml:"chat_list_limit"`
	ChatHistoryLimit    int `toml:"chat_history_limit"`
	SearchLimit         int `toml:"search_limit"`
	ActionItemChatCount int `toml:"action_item_chat_count"`
	ActionItemPerChat   int `toml:"action_item_per_chat"`
	SnippetBudgetChars  int `toml:"snippet_budget_chars"`
}

type FollowUpConfig struct {
	FollowUpHours    int `toml:"follow_up_hours"`
	StaleHours       int `toml:"stale_hours"`
	MaxAgeDays       int `toml:"max_age_days"`
	MaxGroupMembers  int `toml:"max_group_members"`
	MaxGroupUnread   int `toml:"max_group_unread"`
	MaxAISuggestions int `toml:"max_ai_suggestions"`
	MessagesPerChat  int `toml:"messages_per_chat"`
}

type SemanticConfig struct {
	BatchSize         int `toml:"batch_size"`
	ConcurrentBatches int `toml:"concurrent_batches"`
	MessagesPerChat   int `toml:"messages_per_chat"`
}

type RetryConfig struct {
	MaxAttempts    int `toml:"max_attempts"`
	InitialDelayMs int `toml:"initial_delay_ms"`
}

type DaemonConfig struct {
	MetricsAddr string `toml:"metrics_addr"`
	LogLevel    string `toml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultSession: "main",
		Telegram: TelegramConfig{
			PollTimeoutSec: 30,
			CallTimeoutSec: 30,
		},
		AI: AIConfig{
			Provider:          ProviderNone,
			MaxResponseTokens: 4096,
			RequestTimeoutSec: 90,
		},
		RateLimit: RateLimitConfig{MaxTokens: 10, RefillRate: 5},
		Cache:     CacheConfig{MaxUsers: 500, MaxChats: 200},
		Fetch: FetchConfig{
			ChatListLimit:       100,
			ChatHistoryLimit:    50,
			SearchLimit:         50,
			ActionItemChatCount: 50,
			ActionItemPerChat:   15,
			SnippetBudgetChars:  16000,
		},
		FollowUp: FollowUpConfig{
			FollowUpHours:    24,
			StaleHours:       72,
			MaxAgeDays:       30,
			MaxGroupMembers:  20,
			MaxGroupUnread:   10,
			MaxAISuggestions: 15,
			MessagesPerChat:  8,
		},
		Semantic: SemanticConfig{BatchSize: 10, ConcurrentBatches: 3, MessagesPerChat: 10},
		Retry:    RetryConfig{MaxAttempts: 3, InitialDelayMs: 500},
		Daemon:   DaemonConfig{LogLevel: "info"},
	}
}

// Provider names.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Load reads config from the given path on top of Default. Returns error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load that falls back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
// The file holds API keys, so it is written 0600.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// AIConfigured reports whether an AI provider can be built from c.
func (c AIConfig) AIConfigured() bool {
	return c.APIKey != "" && (c.Provider == ProviderClaude || c.Provider == ProviderOpenAI)
}

// RequestTimeout returns the per-call AI timeout.
func (c AIConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// CallTimeout returns the per-call platform timeout.
func (c TelegramConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSec) * time.Second
}

// InitialDelay returns the first retry delay.
func (c RetryConfig) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelayMs) * time.Millisecond
}
