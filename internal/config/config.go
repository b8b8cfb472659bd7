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
	Enabled bool   `yaml:"enabled"`
	Bind    string `yaml:"bind"`
	Port    int    `yaml:"port"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Capture     CaptureConfig   `yaml:"capture"`
	Commit      CommitConfig    `yaml:"commit"`
	STT         STTConfig       `yaml:"stt"`
	Sink        SinkConfig      `yaml:"sink"`
	Bus         BusConfig       `yaml:"bus"`
	History     HistoryConfig   `yaml:"history"`
}

type CaptureConfig struct {
	Mode       string `yaml:"mode"` // exec, scripted
	Command    string `yaml:"command"`
	Device     string `yaml:"device"`
	SampleRate int    `yaml:"sample_rate"`
	BlockMS    int    `yaml:"block_ms"`
	Format     string `yaml:"format"` // f32le, s16le
}

type CommitConfig struct {
	ChunkIntervalMS      int     `yaml:"chunk_interval_ms"`
	MinSpanMS            int     `yaml:"min_span_ms"`
	SilenceThreshold     float64 `yaml:"silence_threshold"`
	RecognitionTimeoutMS int     `yaml:"recognition_timeout_ms"`
	ArchiveDir           string  `yaml:"archive_dir"`
}

type STTConfig struct {
	Mode         string `yaml:"mode"` // mock, exec, openai
	Command      string `yaml:"command"`
	ModelPath    string `yaml:"model_path"`
	Model        string `yaml:"model"`
	Language     string `yaml:"language"`
	BeamSize     int    `yaml:"beam_size"`
	MinSilenceMS int    `yaml:"min_silence_ms"`
	SpeechPadMS  int    `yaml:"speech_pad_ms"`
	APIKey       string `yaml:"api_key"`
}

type SinkConfig struct {
	Console           bool     `yaml:"console"`
	Clipboard         bool     `yaml:"clipboard"`
	ClipboardCommands []string `yaml:"clipboard_commands"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

func Default() Config {
	return Config{
		RuntimeName: "verbatim",
		Environment: "development",
		HTTP: HTTPConfig{
			Enabled: false,
			Bind:    "127.0.0.1",
			Port:    9832,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Capture: CaptureConfig{
			Mode:       "exec",
			Command:    "arecord -q -f FLOAT_LE -r {rate} -c 1 -t raw {device}",
			Device:     "",
			SampleRate: 16000,
			BlockMS:    100,
			Format:     "f32le",
		},
		Commit: CommitConfig{
			ChunkIntervalMS:      2000,
			MinSpanMS:            300,
			SilenceThreshold:     0.005,
			RecognitionTimeoutMS: 45000,
		},
		STT: STTConfig{
			Mode:         "mock",
			Model:        "whisper-1",
			BeamSize:     1,
			MinSilenceMS: 300,
			SpeechPadMS:  100,
		},
		Sink: SinkConfig{
			Console:           true,
			Clipboard:         true,
			ClipboardCommands: []string{"wl-copy", "xclip -selection clipboard"},
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		History: HistoryConfig{
			Enabled:       true,
			Path:          "./data/verbatim-history.db",
			RetentionDays: 90,
			MaxSessions:   1000,
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
	overrideString(&cfg.RuntimeName, "VERBATIM_RUNTIME_NAME")
	overrideString(&cfg.Environment, "VERBATIM_ENVIRONMENT")
	overrideBool(&cfg.HTTP.Enabled, "VERBATIM_HTTP_ENABLED")
	overrideString(&cfg.HTTP.Bind, "VERBATIM_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "VERBATIM_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "VERBATIM_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "VERBATIM_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "VERBATIM_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Capture.Mode, "VERBATIM_CAPTURE_MODE")
	overrideString(&cfg.Capture.Command, "VERBATIM_CAPTURE_COMMAND")
	overrideString(&cfg.Capture.Device, "VERBATIM_CAPTURE_DEVICE")
	overrideInt(&cfg.Capture.SampleRate, "VERBATIM_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.BlockMS, "VERBATIM_CAPTURE_BLOCK_MS")
	overrideString(&cfg.Capture.Format, "VERBATIM_CAPTURE_FORMAT")
	overrideInt(&cfg.Commit.ChunkIntervalMS, "VERBATIM_COMMIT_CHUNK_INTERVAL_MS")
	overrideInt(&cfg.Commit.MinSpanMS, "VERBATIM_COMMIT_MIN_SPAN_MS")
	overrideFloat(&cfg.Commit.SilenceThreshold, "VERBATIM_COMMIT_SILENCE_THRESHOLD")
	overrideInt(&cfg.Commit.RecognitionTimeoutMS, "VERBATIM_COMMIT_RECOGNITION_TIMEOUT_MS")
	overrideString(&cfg.Commit.ArchiveDir, "VERBATIM_COMMIT_ARCHIVE_DIR")
	overrideString(&cfg.STT.Mode, "VERBATIM_STT_MODE")
	overrideString(&cfg.STT.Command, "VERBATIM_STT_COMMAND")
	overrideString(&cfg.STT.ModelPath, "VERBATIM_STT_MODEL_PATH")
	overrideString(&cfg.STT.Model, "VERBATIM_STT_MODEL")
	overrideString(&cfg.STT.Language, "VERBATIM_STT_LANGUAGE")
	overrideInt(&cfg.STT.BeamSize, "VERBATIM_STT_BEAM_SIZE")
	overrideInt(&cfg.STT.MinSilenceMS, "VERBATIM_STT_MIN_SILENCE_MS")
	overrideInt(&cfg.STT.SpeechPadMS, "VERBATIM_STT_SPEECH_PAD_MS")
	overrideString(&cfg.STT.APIKey, "VERBATIM_STT_API_KEY")
	overrideBool(&cfg.Sink.Console, "VERBATIM_SINK_CONSOLE")
	overrideBool(&cfg.Sink.Clipboard, "VERBATIM_SINK_CLIPBOARD")
	overrideBool(&cfg.Bus.Enabled, "VERBATIM_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "VERBATIM_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "VERBATIM_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "VERBATIM_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "VERBATIM_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "VERBATIM_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "VERBATIM_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "VERBATIM_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "VERBATIM_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "VERBATIM_BUS_CONNECT_TIMEOUT_MS")
	overrideBool(&cfg.History.Enabled, "VERBATIM_HISTORY_ENABLED")
	overrideString(&cfg.History.Path, "VERBATIM_HISTORY_PATH")
	overrideInt(&cfg.History.RetentionDays, "VERBATIM_HISTORY_RETENTION_DAYS")
	overrideInt(&cfg.History.MaxSessions, "VERBATIM_HISTORY_MAX_SESSIONS")
	overrideBool(&cfg.History.VacuumOnStart, "VERBATIM_HISTORY_VACUUM_ON_START")
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

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Enabled {
		if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
			return errors.New("http.port must be between 1 and 65535")
		}
	}
	switch cfg.Capture.Mode {
	case "exec", "scripted":
	default:
		return errors.New("capture.mode must be one of exec|scripted")
	}
	if cfg.Capture.Mode == "exec" && cfg.Capture.Command == "" {
		return errors.New("capture.command must be set when mode=exec")
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	if cfg.Capture.BlockMS <= 0 {
		return errors.New("capture.block_ms must be positive")
	}
	switch cfg.Capture.Format {
	case "f32le", "s16le":
	default:
		return errors.New("capture.format must be one of f32le|s16le")
	}
	if cfg.Commit.ChunkIntervalMS <= 0 {
		return errors.New("commit.chunk_interval_ms must be positive")
	}
	if cfg.Commit.MinSpanMS < 0 {
		return errors.New("commit.min_span_ms must be >= 0")
	}
	if cfg.Commit.SilenceThreshold < 0 || cfg.Commit.SilenceThreshold >= 1 {
		return errors.New("commit.silence_threshold must be in [0, 1)")
	}
	switch cfg.STT.Mode {
	case "mock", "exec", "openai":
	default:
		return errors.New("stt.mode must be one of mock|exec|openai")
	}
	if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
		return errors.New("stt.command must be set when mode=exec")
	}
	if cfg.STT.Mode == "openai" && cfg.STT.APIKey == "" {
		return errors.New("stt.api_key must be set when mode=openai")
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
	if cfg.History.Enabled {
		if cfg.History.Path == "" {
			return errors.New("history.path must not be empty when history is enabled")
		}
		if cfg.History.RetentionDays < 0 {
			return errors.New("history.retention_days must be >= 0")
		}
		if cfg.History.MaxSessions < 0 {
			return errors.New("history.max_sessions must be >= 0")
		}
	}
	return nil
}
