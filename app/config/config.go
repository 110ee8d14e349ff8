package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const (
	ProviderJLLM      = "jllm"
	ProviderOpenAI    = "openai"
	ProviderLangchain = "langchain"

	DefaultJLLMURL = "https://janitorai.com/hackathon/completions"
)

type Config struct {
	Log        Log        `yaml:"log"`
	Server     Server     `yaml:"server"`
	Completion Completion `yaml:"completion"`
	Chat       Chat       `yaml:"chat"`
	MCP        MCP        `yaml:"mcp"`
}

type Log struct {
	// Minimum level: debug, info, warn or error
	Level string `yaml:"level" example:"debug" validate:"omitempty,oneof=debug info warn error"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type Server struct {
	// Listen address of the HTTP server
	Listen string `yaml:"listen" example:":8000" validate:"required"`
	// Max inbound websocket frame size in bytes
	ReadLimit int64 `yaml:"read_limit" example:"65536" validate:"gte=1024"`
	// Inbound messages per second allowed per connection
	InboundRate float64 `yaml:"inbound_rate" example:"5" validate:"gt=0"`
	// Inbound burst allowed per connection
	InboundBurst int `yaml:"inbound_burst" example:"10" validate:"gte=1"`
}

type Completion struct {
	// Which gateway to use: jllm, openai or langchain
	Provider string `yaml:"provider" example:"jllm" validate:"oneof=jllm openai langchain"`
	// Completions endpoint (jllm) or OpenAI-compatible base url
	BaseURL string `yaml:"base_url" example:"https://openrouter.ai/api/v1" validate:"required,url"`
	// API token
	Token string `yaml:"token" example:"sk-proj-abc123" validate:"required"`
	// Model name, ignored by jllm
	Model string `yaml:"model" example:"deepseek/deepseek-chat-v3-0324:free" validate:"required_unless=Provider jllm"`
	// Per-request timeout
	Timeout time.Duration `yaml:"timeout" example:"30s" validate:"gt=0"`
	// Attempts per completion including the first one
	MaxAttempts int `yaml:"max_attempts" example:"3" validate:"gte=1,lte=10"`
	// First retry delay
	BackoffBase time.Duration `yaml:"backoff_base" example:"500ms" validate:"gt=0"`
	// Max retry delay
	BackoffCap time.Duration `yaml:"backoff_cap" example:"4s" validate:"gtefield=BackoffBase"`
}

type Chat struct {
	// Optional JSON file with the default room persona
	DefaultPersonaFile string `yaml:"default_persona_file" example:"persona.default.json"`
	// Delay between successive bot replies to a single message
	BotPacing time.Duration `yaml:"bot_pacing" example:"500ms" validate:"gte=0"`
	// History entries kept per room, 0 keeps everything
	MaxHistory int `yaml:"max_history" example:"1000" validate:"gte=0"`
	// Refresh room summary every N history entries, 0 disables
	SummarizeEvery int `yaml:"summarize_every" example:"20" validate:"gte=0"`
	// Pending orchestration passes per room
	QueueSize int `yaml:"queue_size" example:"64" validate:"gte=1"`
	// Room persona may speak on any message; when off it only answers "@Name" mentions
	PrimaryPersona bool `yaml:"primary_persona" example:"false"`
}

type MCP struct {
	// Expose room inspection tools at /mcp
	Enabled bool `yaml:"enabled" example:"true"`
}

func Default() Config {
	return Config{
		Log: Log{Level: "debug"},
		Server: Server{
			Listen:       ":8000",
			ReadLimit:    64 * 1024,
			InboundRate:  5,
			InboundBurst: 10,
		},
		Completion: Completion{
			Provider:    ProviderJLLM,
			BaseURL:     DefaultJLLMURL,
			Timeout:     30 * time.Second,
			MaxAttempts: 3,
			BackoffBase: 500 * time.Millisecond,
			BackoffCap:  4 * time.Second,
		},
		Chat: Chat{
			BotPacing:      500 * time.Millisecond,
			MaxHistory:     1000,
			SummarizeEvery: 20,
			QueueSize:      64,
		},
		MCP: MCP{Enabled: true},
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	return LoadFile(path)
}

// LoadFile reads path on top of Default, applies env overrides and validates the result.
// A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	result := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, oops.Errorf("failed to read config file: %w", err)
	default:
		if err = yaml.Unmarshal(data, &result); err != nil {
			return nil, oops.Errorf("failed to parse YAML config: %w", err)
		}
	}

	applyEnv(&result)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func applyEnv(cfg *Config) {
	if value := os.Getenv("JLLM_API_KEY"); value != "" && cfg.Completion.Provider == ProviderJLLM {
		cfg.Completion.Token = value
	}
	if value := os.Getenv("COMPLETION_TOKEN"); value != "" {
		cfg.Completion.Token = value
	}
	if value := os.Getenv("COMPLETION_BASE_URL"); value != "" {
		cfg.Completion.BaseURL = value
	}
	if value := os.Getenv("LISTEN_ADDR"); value != "" {
		cfg.Server.Listen = value
	}
}
