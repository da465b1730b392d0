// Package config loads the bot configuration from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"siriusbot/chats"
	"siriusbot/conversation"
	"siriusbot/dialogue"
)

// Defaults applied when the YAML file leaves a duration out.
const (
	DefaultLatency         = 500 * time.Millisecond
	DefaultConversationTTL = 24 * time.Hour
	DefaultDispatchTimeout = 60 * time.Second
)

// Config holds everything the bot needs at startup.
type Config struct {
	Token           string `validate:"required"`
	RedisAddr       string
	ChatRegistryKey string
	LogLevel        string
	Production      bool

	Latency         time.Duration `validate:"gt=0"`
	ConversationTTL time.Duration `validate:"gte=0"`
	DispatchTimeout time.Duration `validate:"gt=0"`
	Chats           map[string]int64
	Messages        conversation.Messages
	Report          conversation.ReportTemplate
	Dialogue        dialogue.Definition
}

// file is the on-disk YAML layout.
type file struct {
	// Latency is the debounce window in seconds.
	Latency         float64                     `yaml:"latency"`
	ConversationTTL string                      `yaml:"conversation_ttl"`
	DispatchTimeout string                      `yaml:"dispatch_timeout"`
	Chats           map[string]int64            `yaml:"chats"`
	Messages        conversation.Messages       `yaml:"messages"`
	Report          conversation.ReportTemplate `yaml:"report"`
	Dialogue        dialogue.Definition         `yaml:"dialogue"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		def := sl.Current().Interface().(dialogue.Definition)
		if def.Entry.IsZero() {
			sl.ReportError(def.Entry, "Entry", "Entry", "required", "")
		}
	}, dialogue.Definition{})
	return v
}

// Load reads the YAML file at path. Environment values come from the process
// and from envFiles (default .env); missing env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := &Config{
		Token:           os.Getenv("TELEGRAM_TOKEN"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		ChatRegistryKey: getEnv("CHAT_REGISTRY_KEY", chats.DefaultKey),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Production:      getEnv("APP_ENV", "development") == "production",
		Latency:         DefaultLatency,
		ConversationTTL: DefaultConversationTTL,
		DispatchTimeout: DefaultDispatchTimeout,
		Chats:           f.Chats,
		Messages:        f.Messages.WithDefaults(),
		Report:          f.Report,
		Dialogue:        f.Dialogue,
	}
	if f.Latency != 0 {
		cfg.Latency = time.Duration(f.Latency * float64(time.Second))
	}
	if f.ConversationTTL != "" {
		ttl, err := time.ParseDuration(f.ConversationTTL)
		if err != nil {
			return nil, fmt.Errorf("parse conversation_ttl: %w", err)
		}
		cfg.ConversationTTL = ttl
	}
	if f.DispatchTimeout != "" {
		timeout, err := time.ParseDuration(f.DispatchTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse dispatch_timeout: %w", err)
		}
		cfg.DispatchTimeout = timeout
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("invalid config: %s failed %q", verrs[0].Field(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}
