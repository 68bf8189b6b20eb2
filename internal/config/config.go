// Package config loads the pharoreviewd configuration from YAML with
// environment variable overrides. The config is constructed once in main and
// passed down; there is no package-level cached instance.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pharoreviewd configuration.
type Config struct {
	// Core settings
	AppName string `yaml:"app_name"`
	Version string `yaml:"version"`
	Debug   bool   `yaml:"debug"`

	// Server configuration
	Server ServerConfig `yaml:"server"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Pharo MCP server configuration
	Pharo PharoConfig `yaml:"pharo"`

	// Pipeline settings
	Pipeline PipelineConfig `yaml:"pipeline"`

	// CORS configuration
	CORS CORSConfig `yaml:"cors"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	ListenAddr      string `yaml:"listen_addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// LLMConfig configures the oracle client.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// PharoConfig configures the connection to the Pharo MCP interop server.
type PharoConfig struct {
	// ServerURL is exported to the MCP subprocess as PHARO_SERVER_URL.
	ServerURL string `yaml:"server_url"`

	// Command, Args and WorkingDirectory launch the MCP stdio server.
	Command          string   `yaml:"command"`
	Args             []string `yaml:"args"`
	WorkingDirectory string   `yaml:"working_directory"`

	// Timeout bounds the MCP connect handshake and each tool call.
	Timeout string `yaml:"timeout"`
}

// PipelineConfig configures pipeline execution.
type PipelineConfig struct {
	// MaxValidationIterations caps the validate/refine loop.
	MaxValidationIterations int `yaml:"max_validation_iterations"`

	// MaxToolCalls limits tool calls per stage to prevent runaway execution.
	MaxToolCalls int `yaml:"max_tool_calls"`

	// ToolTimeout is the maximum time for a single tool execution.
	ToolTimeout string `yaml:"tool_timeout"`
}

// CORSConfig configures cross-origin request handling at the boundary.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		AppName: "Pharo Reviewer Agent API",
		Version: "1.0.0",
		Debug:   false,

		Server: ServerConfig{
			ListenAddr:      ":8000",
			ReadTimeout:     "30s",
			WriteTimeout:    "15m",
			ShutdownTimeout: "10s",
		},

		LLM: LLMConfig{
			Model:   "gemini-3-pro-preview",
			Timeout: "10m",
		},

		Pharo: PharoConfig{
			ServerURL: "http://localhost:8086",
			Command:   "uv",
			Args:      []string{"run", "pharo-smalltalk-interop-mcp-server"},
			Timeout:   "30s",
		},

		Pipeline: PipelineConfig{
			MaxValidationIterations: 3,
			MaxToolCalls:            20,
			ToolTimeout:             "2m",
		},

		CORS: CORSConfig{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"*"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file is not an error: defaults plus env overrides are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("PHAROREVIEW_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if addr := os.Getenv("PHAROREVIEW_LISTEN_ADDR"); addr != "" {
		c.Server.ListenAddr = addr
	}
	if url := os.Getenv("PHARO_SERVER_URL"); url != "" {
		c.Pharo.ServerURL = url
	}
	if cmd := os.Getenv("PHARO_MCP_COMMAND"); cmd != "" {
		c.Pharo.Command = cmd
	}
	if cwd := os.Getenv("PHARO_MCP_CWD"); cwd != "" {
		c.Pharo.WorkingDirectory = cwd
	}
	if v := os.Getenv("PHAROREVIEW_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Pipeline.MaxValidationIterations = n
		}
	}
	if v := os.Getenv("PHAROREVIEW_DEBUG"); v != "" {
		c.Debug = v == "1" || strings.EqualFold(v, "true")
	}
	if origins := os.Getenv("PHAROREVIEW_CORS_ORIGINS"); origins != "" {
		c.CORS.AllowedOrigins = splitAndTrim(origins)
	}
}

// Validate checks that the configuration is usable at boot.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm api_key is required (set GOOGLE_API_KEY)")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	if c.Pharo.Command == "" {
		return fmt.Errorf("pharo command is required")
	}
	if c.Pipeline.MaxValidationIterations < 1 {
		return fmt.Errorf("max_validation_iterations must be >= 1")
	}
	return nil
}

// ParseDuration parses a duration string with a fallback default.
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
