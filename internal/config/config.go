package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	yaml "gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Jenkins  JenkinsConfig  `yaml:"jenkins"`
	Poll     PollConfig     `yaml:"poll"`
	Output   OutputConfig   `yaml:"output"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
}

// JenkinsConfig represents the remote Jenkins server configuration
type JenkinsConfig struct {
	URL        string `yaml:"url"`
	Username   string `yaml:"username"` // Jenkins username (optional, defaults to token if not provided)
	Token      string `yaml:"token"`    // Jenkins API token
	BuildToken string `yaml:"build_token"`
	Insecure   bool   `yaml:"insecure"` // Skip TLS certificate verification
	Timeout    int    `yaml:"timeout"`  // Per-request timeout in seconds (default: 30)
}

// PollConfig represents the job-tracking poll tunables
type PollConfig struct {
	TimeoutSeconds  int `yaml:"timeout_seconds"`  // Total polling budget per phase (default: 3600)
	IntervalSeconds int `yaml:"interval_seconds"` // Delay between status checks (default: 10)
}

// OutputConfig represents the properties sink configuration
type OutputConfig struct {
	Persist   bool   `yaml:"persist"`
	PropsFile string `yaml:"props_file"`
}

// ServerConfig represents the service-mode HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"` // Empty slice means allow all origins
	MaxBodySize    int64    `yaml:"max_body_size"`   // Maximum request body size in bytes (default: 1MB)
}

// DatabaseConfig represents the build-record database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// APIConfig represents the service-mode API configuration
type APIConfig struct {
	Keys []string `yaml:"keys"`
}

// Load loads the configuration from the given file path. An empty path
// yields a configuration built from environment variables and defaults only,
// which is how the CLI runs when driven purely by flags.
func Load(filePath string) (*Config, error) {
	config := &Config{}

	if filePath != "" {
		data, err := os.ReadFile(filePath) //nolint:gosec // Trusted file path input
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, err
		}
	}

	applyEnvVars(config)
	setDefaults(config)

	return config, nil
}

// applyEnvVars applies environment variables to the configuration
func applyEnvVars(config *Config) {
	// Jenkins configuration
	if url := os.Getenv("REMOTEBUILD_JENKINS_URL"); url != "" {
		config.Jenkins.URL = url
	}
	if username := os.Getenv("REMOTEBUILD_JENKINS_USERNAME"); username != "" {
		config.Jenkins.Username = username
	}
	if token := os.Getenv("REMOTEBUILD_JENKINS_TOKEN"); token != "" {
		config.Jenkins.Token = token
	}
	if buildToken := os.Getenv("REMOTEBUILD_JENKINS_BUILD_TOKEN"); buildToken != "" {
		config.Jenkins.BuildToken = buildToken
	}
	if insecure := os.Getenv("REMOTEBUILD_JENKINS_INSECURE"); insecure != "" {
		if b, err := strconv.ParseBool(insecure); err == nil {
			config.Jenkins.Insecure = b
		}
	}
	if timeout := os.Getenv("REMOTEBUILD_JENKINS_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil && t > 0 {
			config.Jenkins.Timeout = t
		}
	}

	// Poll tunables
	if timeout := os.Getenv("REMOTEBUILD_POLL_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil && t > 0 {
			config.Poll.TimeoutSeconds = t
		}
	}
	if interval := os.Getenv("REMOTEBUILD_POLL_INTERVAL"); interval != "" {
		if i, err := strconv.Atoi(interval); err == nil && i > 0 {
			config.Poll.IntervalSeconds = i
		}
	}

	// Output configuration
	if propsFile := os.Getenv("REMOTEBUILD_PROPS_FILE"); propsFile != "" {
		config.Output.PropsFile = propsFile
	}

	// Server configuration
	if port := os.Getenv("REMOTEBUILD_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("REMOTEBUILD_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Database configuration
	if path := os.Getenv("REMOTEBUILD_DATABASE_PATH"); path != "" {
		config.Database.Path = path
	}
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	// Jenkins defaults
	if config.Jenkins.Timeout == 0 {
		config.Jenkins.Timeout = 30
	}
	if config.Jenkins.Username == "" {
		// If username is not provided, use token as username (Jenkins API token authentication)
		config.Jenkins.Username = config.Jenkins.Token
	}

	// Poll defaults
	if config.Poll.TimeoutSeconds == 0 {
		config.Poll.TimeoutSeconds = 3600
	}
	if config.Poll.IntervalSeconds == 0 {
		config.Poll.IntervalSeconds = 10
	}

	// Output defaults
	if config.Output.PropsFile == "" {
		config.Output.PropsFile = "remote_build.properties"
	}

	// Server defaults
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.MaxBodySize == 0 {
		config.Server.MaxBodySize = 1 << 20 // 1MB default
	}

	// Database defaults
	if config.Database.Path == "" {
		config.Database.Path = "./remotebuild.db"
	}
}

// GetLogLevel returns the log level from the environment
func GetLogLevel() string {
	levelStr := os.Getenv("REMOTEBUILD_LOG_LEVEL")
	if levelStr == "" {
		return "info"
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if _, ok := validLevels[levelStr]; ok {
		return levelStr
	}

	return "info"
}

// ValidateJenkins checks the fields every network-facing command needs.
// Failing here means no request has been sent yet.
func (c *Config) ValidateJenkins() error {
	if c.Jenkins.URL == "" {
		return fmt.Errorf("jenkins.url is required")
	}
	if _, err := url.Parse(c.Jenkins.URL); err != nil {
		return fmt.Errorf("invalid jenkins.url: %v", err)
	}
	if c.Jenkins.Token == "" {
		return fmt.Errorf("jenkins.token is required")
	}
	if c.Poll.TimeoutSeconds < 1 {
		return fmt.Errorf("invalid poll.timeout_seconds: %d (must be positive)", c.Poll.TimeoutSeconds)
	}
	if c.Poll.IntervalSeconds < 1 {
		return fmt.Errorf("invalid poll.interval_seconds: %d (must be positive)", c.Poll.IntervalSeconds)
	}
	return nil
}

// ValidateServe checks the additional fields required by service mode
func (c *Config) ValidateServe() error {
	if err := c.ValidateJenkins(); err != nil {
		return err
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxBodySize < 0 {
		return fmt.Errorf("invalid server.max_body_size: %d (must be non-negative)", c.Server.MaxBodySize)
	}
	if c.Server.MaxBodySize > 100<<20 { // 100MB max
		return fmt.Errorf("invalid server.max_body_size: %d (must be less than 100MB)", c.Server.MaxBodySize)
	}

	if len(c.API.Keys) == 0 {
		return fmt.Errorf("at least one api.key is required")
	}
	for i, key := range c.API.Keys {
		if key == "" {
			return fmt.Errorf("api.keys[%d] cannot be empty", i)
		}
	}

	return nil
}
