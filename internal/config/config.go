package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	Course      CourseConfig     `yaml:"course"`
	Chat        ChatConfig       `yaml:"chat"`
	Translate   TranslateConfig  `yaml:"translate"`
	Teaching    TeachingConfig   `yaml:"teaching"`
	Synthesis   SynthesisConfig  `yaml:"synthesis"`
	STT         STTConfig        `yaml:"stt"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type CourseConfig struct {
	Path string `yaml:"path"`
}

type ChatConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Mode        string  `yaml:"mode"` // mock, ollama, exec
	Endpoint    string  `yaml:"endpoint"`
	Command     string  `yaml:"command"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type TranslateConfig struct {
	Enabled bool   `yaml:"enabled"`
	Mode    string `yaml:"mode"` // mock, exec
	Command string `yaml:"command"`
}

type TeachingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SynthesisConfig carries the voice backend selection plus the latency
// tiering used by the chunk scheduler. Thresholds are in characters of
// cleaned text.
type SynthesisConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Mode             string `yaml:"mode"` // mock, exec, sarvam
	Command          string `yaml:"command"`
	Endpoint         string `yaml:"endpoint"`
	Voice            string `yaml:"voice"`
	DefaultLanguage  string `yaml:"default_language"`
	SingleThreshold  int    `yaml:"single_threshold"`
	MediumThreshold  int    `yaml:"medium_threshold"`
	SmallChunkSize   int    `yaml:"small_chunk_size"`
	LargeChunkSize   int    `yaml:"large_chunk_size"`
	StreamChunkSize  int    `yaml:"stream_chunk_size"`
	MaxConcurrency   int    `yaml:"max_concurrency"`
	UltraFastCeiling int    `yaml:"ultra_fast_ceiling"`
	HardCeiling      int    `yaml:"hard_ceiling"`
}

type STTConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Mode       string `yaml:"mode"` // mock, exec
	Command    string `yaml:"command"`
	ModelPath  string `yaml:"model_path"`
	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
}

func Default() Config {
	return Config{
		RuntimeName: "prof-core",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 5001,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/prof-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Course: CourseConfig{
			Path: "./data/courses/course_output.json",
		},
		Chat: ChatConfig{
			Enabled:     true,
			Mode:        "mock",
			Endpoint:    "http://localhost:11434",
			Model:       "llama3.2:latest",
			MaxTokens:   512,
			Temperature: 0.7,
		},
		Translate: TranslateConfig{
			Enabled: false,
			Mode:    "mock",
		},
		Teaching: TeachingConfig{
			Enabled: true,
		},
		Synthesis: SynthesisConfig{
			Enabled:          true,
			Mode:             "mock",
			Endpoint:         "wss://api.sarvam.ai/text-to-speech/streaming",
			Voice:            "anushka",
			DefaultLanguage:  "en-IN",
			SingleThreshold:  2500,
			MediumThreshold:  6000,
			SmallChunkSize:   2000,
			LargeChunkSize:   2500,
			StreamChunkSize:  1500,
			MaxConcurrency:   4,
			UltraFastCeiling: 3000,
			HardCeiling:      8000,
		},
		STT: STTConfig{
			Enabled:    false,
			Mode:       "mock",
			SampleRate: 16000,
			Channels:   1,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "PROFD_RUNTIME_NAME")
	overrideString(&cfg.Environment, "PROFD_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "PROFD_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "PROFD_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "PROFD_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "PROFD_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "PROFD_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Enabled, "PROFD_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "PROFD_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "PROFD_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "PROFD_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "PROFD_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "PROFD_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "PROFD_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "PROFD_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "PROFD_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "PROFD_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "PROFD_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "PROFD_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "PROFD_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "PROFD_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.Course.Path, "PROFD_COURSE_PATH")
	overrideBool(&cfg.Chat.Enabled, "PROFD_CHAT_ENABLED")
	overrideString(&cfg.Chat.Mode, "PROFD_CHAT_MODE")
	overrideString(&cfg.Chat.Endpoint, "PROFD_CHAT_ENDPOINT")
	overrideString(&cfg.Chat.Command, "PROFD_CHAT_COMMAND")
	overrideString(&cfg.Chat.Model, "PROFD_CHAT_MODEL")
	overrideInt(&cfg.Chat.MaxTokens, "PROFD_CHAT_MAX_TOKENS")
	overrideFloat(&cfg.Chat.Temperature, "PROFD_CHAT_TEMPERATURE")
	overrideBool(&cfg.Translate.Enabled, "PROFD_TRANSLATE_ENABLED")
	overrideString(&cfg.Translate.Mode, "PROFD_TRANSLATE_MODE")
	overrideString(&cfg.Translate.Command, "PROFD_TRANSLATE_COMMAND")
	overrideBool(&cfg.Teaching.Enabled, "PROFD_TEACHING_ENABLED")
	overrideBool(&cfg.Synthesis.Enabled, "PROFD_SYNTHESIS_ENABLED")
	overrideString(&cfg.Synthesis.Mode, "PROFD_SYNTHESIS_MODE")
	overrideString(&cfg.Synthesis.Command, "PROFD_SYNTHESIS_COMMAND")
	overrideString(&cfg.Synthesis.Endpoint, "PROFD_SYNTHESIS_ENDPOINT")
	overrideString(&cfg.Synthesis.Voice, "PROFD_SYNTHESIS_VOICE")
	overrideString(&cfg.Synthesis.DefaultLanguage, "PROFD_SYNTHESIS_DEFAULT_LANGUAGE")
	overrideInt(&cfg.Synthesis.SingleThreshold, "PROFD_SYNTHESIS_SINGLE_THRESHOLD")
	overrideInt(&cfg.Synthesis.MediumThreshold, "PROFD_SYNTHESIS_MEDIUM_THRESHOLD")
	overrideInt(&cfg.Synthesis.SmallChunkSize, "PROFD_SYNTHESIS_SMALL_CHUNK_SIZE")
	overrideInt(&cfg.Synthesis.LargeChunkSize, "PROFD_SYNTHESIS_LARGE_CHUNK_SIZE")
	overrideInt(&cfg.Synthesis.StreamChunkSize, "PROFD_SYNTHESIS_STREAM_CHUNK_SIZE")
	overrideInt(&cfg.Synthesis.MaxConcurrency, "PROFD_SYNTHESIS_MAX_CONCURRENCY")
	overrideInt(&cfg.Synthesis.UltraFastCeiling, "PROFD_SYNTHESIS_ULTRA_FAST_CEILING")
	overrideInt(&cfg.Synthesis.HardCeiling, "PROFD_SYNTHESIS_HARD_CEILING")
	overrideBool(&cfg.STT.Enabled, "PROFD_STT_ENABLED")
	overrideString(&cfg.STT.Mode, "PROFD_STT_MODE")
	overrideString(&cfg.STT.Command, "PROFD_STT_COMMAND")
	overrideString(&cfg.STT.ModelPath, "PROFD_STT_MODEL_PATH")
	overrideString(&cfg.STT.Language, "PROFD_STT_LANGUAGE")
	overrideInt(&cfg.STT.SampleRate, "PROFD_STT_SAMPLE_RATE")
	overrideInt(&cfg.STT.Channels, "PROFD_STT_CHANNELS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	if cfg.Course.Path == "" {
		return errors.New("course.path must not be empty")
	}
	if cfg.Chat.Enabled {
		switch cfg.Chat.Mode {
		case "mock", "ollama", "exec":
		default:
			return errors.New("chat.mode must be one of mock|ollama|exec")
		}
		if cfg.Chat.Mode == "ollama" && cfg.Chat.Endpoint == "" {
			return errors.New("chat.endpoint must be set when mode=ollama")
		}
		if cfg.Chat.Mode == "exec" && cfg.Chat.Command == "" {
			return errors.New("chat.command must be set when mode=exec")
		}
		if cfg.Chat.MaxTokens < 0 {
			return errors.New("chat.max_tokens must be >= 0")
		}
	}
	if cfg.Translate.Enabled {
		switch cfg.Translate.Mode {
		case "mock", "exec":
		default:
			return errors.New("translate.mode must be one of mock|exec")
		}
		if cfg.Translate.Mode == "exec" && cfg.Translate.Command == "" {
			return errors.New("translate.command must be set when mode=exec")
		}
	}
	if cfg.Synthesis.Enabled {
		switch cfg.Synthesis.Mode {
		case "mock", "exec", "sarvam":
		default:
			return errors.New("synthesis.mode must be one of mock|exec|sarvam")
		}
		if cfg.Synthesis.Mode == "exec" && cfg.Synthesis.Command == "" {
			return errors.New("synthesis.command must be set when mode=exec")
		}
		if cfg.Synthesis.Mode == "sarvam" && cfg.Synthesis.Endpoint == "" {
			return errors.New("synthesis.endpoint must be set when mode=sarvam")
		}
		if cfg.Synthesis.SingleThreshold <= 0 {
			return errors.New("synthesis.single_threshold must be positive")
		}
		if cfg.Synthesis.MediumThreshold <= cfg.Synthesis.SingleThreshold {
			return errors.New("synthesis.medium_threshold must be greater than single_threshold")
		}
		if cfg.Synthesis.SmallChunkSize <= 0 || cfg.Synthesis.LargeChunkSize <= 0 || cfg.Synthesis.StreamChunkSize <= 0 {
			return errors.New("synthesis chunk sizes must be positive")
		}
		if cfg.Synthesis.MaxConcurrency <= 0 {
			return errors.New("synthesis.max_concurrency must be >= 1")
		}
		if cfg.Synthesis.UltraFastCeiling <= 0 {
			return errors.New("synthesis.ultra_fast_ceiling must be positive")
		}
		if cfg.Synthesis.HardCeiling < cfg.Synthesis.UltraFastCeiling {
			return errors.New("synthesis.hard_ceiling must be >= ultra_fast_ceiling")
		}
		if cfg.Synthesis.DefaultLanguage == "" {
			return errors.New("synthesis.default_language must not be empty")
		}
	}
	if cfg.STT.Enabled {
		if cfg.STT.SampleRate <= 0 {
			return errors.New("stt.sample_rate must be positive")
		}
		if cfg.STT.Channels <= 0 {
			return errors.New("stt.channels must be positive")
		}
		if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
			return errors.New("stt.command must be set when mode=exec")
		}
	}
	return nil
}
