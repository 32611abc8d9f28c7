// Package config loads service settings from SYNTAXD_* environment variables
// and an optional config file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Log      LogConfig
	Parser   ParserConfig
	Engine   EngineConfig
	Pipeline PipelineConfig
	Store    StoreConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig holds the bearer key clients must present.
type AuthConfig struct {
	APIKey string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// ParserConfig controls how records are segmented and parsed.
type ParserConfig struct {
	SentenceView      string
	TokenView         string
	MaxSentenceLength int
	Tokenize          bool
	FailurePolicy     string
	ShiftSpans        bool
	Encoding          string
	StatsWindow       time.Duration
}

// EngineConfig selects the parsing engine.
type EngineConfig struct {
	Kind          string
	GrammarFile   string
	RemoteURL     string
	RemoteAPIKey  string
	RemoteTimeout time.Duration
}

// PipelineConfig holds async job settings.
type PipelineConfig struct {
	WorkerCount          int
	MaxQueueSize         int
	JobTTL               time.Duration
	MaxUploadBytes       int64
	FoldASCII            bool
	PDFFallbackPdftotext bool
}

// StoreConfig selects the forest cache backend.
type StoreConfig struct {
	Backend    string
	TTL        time.Duration
	MaxEntries int
	DSN        string
	MaxOpen    int
	MaxIdle    int
	KVURL      string
	KVAPIKey   string
	KVPrefix   string
}

// Load reads configuration from SYNTAXD_ environment variables. When
// SYNTAXD_CONFIG names a file (yaml, toml or json) it is read first and the
// environment overrides it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SYNTAXD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path := os.Getenv("SYNTAXD_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}

	// PORT is honored when SYNTAXD_SERVER_PORT is not set explicitly.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SYNTAXD_SERVER_PORT") == "" {
		serverPort = port
	}
	cfg.Server = ServerConfig{
		Port:            serverPort,
		ReadTimeout:     v.GetDuration("server.read_timeout"),
		WriteTimeout:    v.GetDuration("server.write_timeout"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
	}
	cfg.Auth = AuthConfig{
		APIKey: v.GetString("auth.api_key"),
	}
	cfg.Log = LogConfig{
		Level:  strings.ToLower(v.GetString("log.level")),
		Format: strings.ToLower(v.GetString("log.format")),
	}
	cfg.Parser = ParserConfig{
		SentenceView:      v.GetString("parser.sentence_view"),
		TokenView:         v.GetString("parser.token_view"),
		MaxSentenceLength: v.GetInt("parser.max_sentence_length"),
		Tokenize:          v.GetBool("parser.tokenize"),
		FailurePolicy:     strings.ToLower(v.GetString("parser.failure_policy")),
		ShiftSpans:        v.GetBool("parser.shift_spans"),
		Encoding:          v.GetString("parser.encoding"),
		StatsWindow:       v.GetDuration("parser.stats_window"),
	}
	cfg.Engine = EngineConfig{
		Kind:          strings.ToLower(v.GetString("engine.kind")),
		GrammarFile:   v.GetString("engine.grammar_file"),
		RemoteURL:     v.GetString("engine.remote_url"),
		RemoteAPIKey:  v.GetString("engine.remote_api_key"),
		RemoteTimeout: v.GetDuration("engine.remote_timeout"),
	}
	cfg.Pipeline = PipelineConfig{
		WorkerCount:          v.GetInt("pipeline.worker_count"),
		MaxQueueSize:         v.GetInt("pipeline.max_queue_size"),
		JobTTL:               v.GetDuration("pipeline.job_ttl"),
		MaxUploadBytes:       v.GetInt64("pipeline.max_upload_bytes"),
		FoldASCII:            v.GetBool("pipeline.fold_ascii"),
		PDFFallbackPdftotext: v.GetBool("pipeline.pdf_fallback_pdftotext"),
	}
	cfg.Store = StoreConfig{
		Backend:    strings.ToLower(v.GetString("store.backend")),
		TTL:        v.GetDuration("store.ttl"),
		MaxEntries: v.GetInt("store.max_entries"),
		DSN:        v.GetString("store.dsn"),
		MaxOpen:    v.GetInt("store.max_open"),
		MaxIdle:    v.GetInt("store.max_idle"),
		KVURL:      v.GetString("store.kv_url"),
		KVAPIKey:   v.GetString("store.kv_api_key"),
		KVPrefix:   v.GetString("store.kv_prefix"),
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8090")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("auth.api_key", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Parser defaults
	v.SetDefault("parser.sentence_view", "sentences")
	v.SetDefault("parser.token_view", "tokens")
	v.SetDefault("parser.max_sentence_length", 100)
	v.SetDefault("parser.tokenize", true)
	v.SetDefault("parser.failure_policy", "strict")
	v.SetDefault("parser.shift_spans", true)
	v.SetDefault("parser.encoding", "ascii")
	v.SetDefault("parser.stats_window", "1h")

	// Engine defaults
	v.SetDefault("engine.kind", "pcfg")
	v.SetDefault("engine.grammar_file", "")
	v.SetDefault("engine.remote_url", "")
	v.SetDefault("engine.remote_api_key", "")
	v.SetDefault("engine.remote_timeout", "30s")

	// Pipeline defaults
	v.SetDefault("pipeline.worker_count", 2)
	v.SetDefault("pipeline.max_queue_size", 100)
	v.SetDefault("pipeline.job_ttl", "1h")
	v.SetDefault("pipeline.max_upload_bytes", 52428800) // 50MB
	v.SetDefault("pipeline.fold_ascii", true)
	v.SetDefault("pipeline.pdf_fallback_pdftotext", true)

	// Store defaults
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.ttl", "24h")
	v.SetDefault("store.max_entries", 1000)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.max_open", 10)
	v.SetDefault("store.max_idle", 5)
	v.SetDefault("store.kv_url", "")
	v.SetDefault("store.kv_api_key", "")
	v.SetDefault("store.kv_prefix", "syntaxd/forests")
}

// Validate checks the settings every binary depends on.
func (c Config) Validate() error {
	if c.Parser.SentenceView == "" {
		return fmt.Errorf("parser.sentence_view is required")
	}
	if c.Parser.TokenView == "" {
		return fmt.Errorf("parser.token_view is required")
	}
	if c.Parser.MaxSentenceLength <= 0 {
		return fmt.Errorf("parser.max_sentence_length must be positive, got %d", c.Parser.MaxSentenceLength)
	}
	switch c.Parser.FailurePolicy {
	case "strict", "partial":
	default:
		return fmt.Errorf("parser.failure_policy must be strict or partial, got %q", c.Parser.FailurePolicy)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	switch c.Engine.Kind {
	case "pcfg":
	case "remote":
		if c.Engine.RemoteURL == "" {
			return fmt.Errorf("engine.remote_url is required for the remote engine")
		}
	default:
		return fmt.Errorf("engine.kind must be pcfg or remote, got %q", c.Engine.Kind)
	}
	if c.Pipeline.WorkerCount <= 0 {
		return fmt.Errorf("pipeline.worker_count must be positive, got %d", c.Pipeline.WorkerCount)
	}
	if c.Pipeline.MaxQueueSize <= 0 {
		return fmt.Errorf("pipeline.max_queue_size must be positive, got %d", c.Pipeline.MaxQueueSize)
	}
	switch c.Store.Backend {
	case "none", "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres backend")
		}
	case "kv":
		if c.Store.KVURL == "" {
			return fmt.Errorf("store.kv_url is required for the kv backend")
		}
	default:
		return fmt.Errorf("store.backend must be none, memory, postgres or kv, got %q", c.Store.Backend)
	}
	return nil
}

// ValidateServer additionally requires the settings only the HTTP service
// needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("SYNTAXD_AUTH_API_KEY is required")
	}
	return nil
}
