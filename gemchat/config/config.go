package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string      `yaml:"port"`
	Environment string      `yaml:"environment"`
	LogDir      string      `yaml:"log_dir"`
	Store       StoreConfig `yaml:"store"`
	GenAI       GenAIConfig `yaml:"genai"`
}

type StoreConfig struct {
	// DBPath is the sqlite file backing the primary store.
	DBPath string `yaml:"db_path"`
	// FallbackDir holds the flat key-value snapshots used when the
	// primary store cannot be opened.
	FallbackDir string `yaml:"fallback_dir"`
}

type GenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// DefaultModel and TitleModel are deliberately not given built-in
	// defaults; both come from the environment or the config file.
	DefaultModel string `yaml:"default_model"`
	TitleModel   string `yaml:"title_model"`
	SystemPrompt string `yaml:"system_prompt"`
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	cfg := Config{
		Port:        getEnv("PORT", "8000"),
		Environment: getEnv("GO_ENV", "development"),
		LogDir:      getEnv("LOG_DIR", "./logs"),
		Store: StoreConfig{
			DBPath:      getEnv("DB_PATH", "./gemchat.db"),
			FallbackDir: getEnv("FALLBACK_STORE_DIR", "./gemchat_store"),
		},
		GenAI: GenAIConfig{
			BaseURL:      getEnv("GENAI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			APIKey:       getEnv("GEMINI_API_KEY", ""),
			DefaultModel: getEnv("DEFAULT_MODEL", ""),
			TitleModel:   getEnv("TITLE_MODEL", ""),
			SystemPrompt: getEnv("SYSTEM_PROMPT", ""),
		},
	}

	// Optional YAML overrides, mostly for local development.
	if path := getEnv("GEMCHAT_CONFIG", ""); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			log.Printf("config file %s not applied: %v", path, err)
		}
	}

	// The title generator uses the cheap variant when one is configured,
	// otherwise whatever the chat model is.
	if cfg.GenAI.TitleModel == "" {
		cfg.GenAI.TitleModel = cfg.GenAI.DefaultModel
	}

	return cfg
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, cfg)
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}
