package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port string

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPass     string
	Neo4jDatabase string

	EmbeddingURL        string
	EmbeddingDimensions int

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	ReposPath string
}

func Load() *Config {
	return &Config{
		Port:                getEnv("BACKEND_PORT", "3001"),
		Neo4jURI:            getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:           getEnv("NEO4J_USER", "neo4j"),
		Neo4jPass:           getEnv("NEO4J_PASSWORD", ""),
		Neo4jDatabase:       getEnv("NEO4J_DATABASE", "neo4j"),
		EmbeddingURL:        getEnv("EMBEDDING_URL", "http://localhost:8080"),
		EmbeddingDimensions: getEnvInt("EMBEDDING_DIMENSIONS", 768),
		OpenAIKey:           getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
		ReposPath:           getEnv("REPOS_PATH", "./repos"),
	}
}

// Validate rejects configurations the service cannot start with. Called once
// in main; failures are fatal.
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return fmt.Errorf("NEO4J_URI is required")
	}
	if c.Neo4jUser == "" || c.Neo4jPass == "" {
		return fmt.Errorf("NEO4J_USER and NEO4J_PASSWORD are required")
	}
	if c.EmbeddingURL == "" {
		return fmt.Errorf("EMBEDDING_URL is required")
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDimensions)
	}
	if c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.OpenAIModel == "" {
		return fmt.Errorf("OPENAI_MODEL is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
