package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Vector    VectorConfig
	OCR       OCRConfig
	Speech    SpeechConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type StorageConfig struct {
	DataDir string
}

type LLMConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	MaxOutputTokens int
}

type EmbeddingConfig struct {
	APIKey string
}

type VectorConfig struct {
	APIKey    string
	IndexHost string
	Namespace string
}

type OCRConfig struct {
	BaseURL string
	APIKey  string
}

type SpeechConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		LLM: LLMConfig{
			BaseURL:         "https://api.openai.com/v1",
			Model:           "gpt-4.1-mini",
			MaxOutputTokens: 2048,
		},
		Vector: VectorConfig{
			Namespace: "complaints",
		},
		OCR: OCRConfig{
			BaseURL: "https://api.ocr.space",
		},
		Speech: SpeechConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "whisper-1",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".plaint"
	}
	return home + "/.plaint"
}

// Load reads configuration from environment variables on top of built-in
// defaults. Every upstream credential is required: a missing one fails here,
// at startup, rather than on the first request that needs it.
func Load() (Config, error) {
	return loadWith(os.Getenv)
}

func loadWith(getenv func(string) string) (Config, error) {
	cfg := defaults()

	if v := getenv("PLAINT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PLAINT_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := getenv("PLAINT_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := getenv("PLAINT_API_TOKEN"); v != "" {
		cfg.Server.APIToken = v
	}
	if v := getenv("PLAINT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := getenv("PLAINT_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = strings.TrimRight(v, "/")
	}
	if v := getenv("PLAINT_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := getenv("PLAINT_SPEECH_BASE_URL"); v != "" {
		cfg.Speech.BaseURL = strings.TrimRight(v, "/")
	}
	if v := getenv("PLAINT_SPEECH_MODEL"); v != "" {
		cfg.Speech.Model = v
	}
	if v := getenv("PLAINT_OCR_BASE_URL"); v != "" {
		cfg.OCR.BaseURL = strings.TrimRight(v, "/")
	}
	if v := getenv("PINECONE_NAMESPACE"); v != "" {
		cfg.Vector.Namespace = v
	}

	cfg.LLM.APIKey = getenv("LLM_API_KEY")
	cfg.Embedding.APIKey = getenv("VOYAGEAI_API_KEY")
	cfg.Vector.APIKey = getenv("PINECONE_API_KEY")
	cfg.Vector.IndexHost = getenv("PINECONE_INDEX_HOST")
	cfg.OCR.APIKey = getenv("OCR_API_KEY")
	cfg.Speech.APIKey = getenv("SPEECH_API_KEY")

	var missing []string
	for _, req := range []struct {
		name, value string
	}{
		{"LLM_API_KEY", cfg.LLM.APIKey},
		{"VOYAGEAI_API_KEY", cfg.Embedding.APIKey},
		{"PINECONE_API_KEY", cfg.Vector.APIKey},
		{"PINECONE_INDEX_HOST", cfg.Vector.IndexHost},
		{"OCR_API_KEY", cfg.OCR.APIKey},
		{"SPEECH_API_KEY", cfg.Speech.APIKey},
	} {
		if req.value == "" {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}
