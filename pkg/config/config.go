package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
		RateLimit   float64 `yaml:"rate_limit"`
	} `yaml:"llm"`

	Embedding struct {
		Model string `yaml:"model"`
	} `yaml:"embedding"`

	Index struct {
		Backend   string `yaml:"backend"` // "file" or "pgvector"
		Path      string `yaml:"path"`
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
	} `yaml:"index"`

	Metadata struct {
		Path string `yaml:"path"`
	} `yaml:"metadata"`

	Chunker struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"chunker"`

	Retrieval struct {
		Expansions    int    `yaml:"expansions"`
		KPerQuery     int    `yaml:"k_per_query"`
		FinalK        int    `yaml:"final_k"`
		HistoryWindow int    `yaml:"history_window"`
		DomainQuery   string `yaml:"domain_query"`
	} `yaml:"retrieval"`

	Server struct {
		Addr           string `yaml:"addr"`
		UploadDir      string `yaml:"upload_dir"`
		MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/askdocs/config.yaml"),
			"/etc/askdocs/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.RateLimit == 0 {
		config.LLM.RateLimit = 2.0
	}

	if config.Embedding.Model == "" {
		config.Embedding.Model = "nomic-embed-text:latest"
	}

	if config.Index.Backend == "" {
		config.Index.Backend = "file"
	}
	if config.Index.Path == "" {
		config.Index.Path = "data/index.bin"
	}
	if config.Index.TableName == "" {
		config.Index.TableName = "chunks"
	}
	if config.Index.VectorDim == 0 {
		config.Index.VectorDim = 768
	}

	if config.Metadata.Path == "" {
		config.Metadata.Path = "data/askdocs.db"
	}

	if config.Chunker.ChunkSize == 0 {
		config.Chunker.ChunkSize = 1000
	}
	if config.Chunker.ChunkOverlap == 0 {
		config.Chunker.ChunkOverlap = 200
	}

	if config.Retrieval.Expansions == 0 {
		config.Retrieval.Expansions = 5
	}
	if config.Retrieval.KPerQuery == 0 {
		config.Retrieval.KPerQuery = 4
	}
	if config.Retrieval.FinalK == 0 {
		config.Retrieval.FinalK = 7
	}
	if config.Retrieval.HistoryWindow == 0 {
		config.Retrieval.HistoryWindow = 5
	}
	if config.Retrieval.DomainQuery == "" {
		config.Retrieval.DomainQuery = "general overview of the indexed documents"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.UploadDir == "" {
		config.Server.UploadDir = "data/uploads"
	}
	if config.Server.MaxUploadBytes == 0 {
		config.Server.MaxUploadBytes = 32 << 20
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Index.URL = dbURL
	}
	if dataDir := os.Getenv("ASKDOCS_DATA_DIR"); dataDir != "" {
		config.Index.Path = filepath.Join(dataDir, "index.bin")
		config.Metadata.Path = filepath.Join(dataDir, "askdocs.db")
		config.Server.UploadDir = filepath.Join(dataDir, "uploads")
	}
}
